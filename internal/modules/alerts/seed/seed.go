// Package seed loads alert definitions from YAML and creates the ones that
// do not exist yet.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gameguyr/tempest/internal/modules/alerts/service"
	"github.com/gameguyr/tempest/internal/modules/alerts/types"
)

// File is the on-disk layout:
//
//	alerts:
//	  - name: Roof heat
//	    stationId: roof
//	    metric: TEMPERATURE
//	    operator: GREATER_THAN
//	    threshold: 30
//	    notificationType: EMAIL
//	    userEmail: ops@example.com
type File struct {
	Alerts []service.AlertInput `yaml:"alerts"`
}

type Creator interface {
	NameExists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, in service.AlertInput) (types.Alert, error)
}

type Result struct {
	Created int
	Skipped int
}

func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read alerts file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse alerts file: %w", err)
	}
	for i, in := range f.Alerts {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return File{}, fmt.Errorf("alerts[%d]: name is required", i)
		}
	}
	return f, nil
}

// Apply creates every alert whose name is not taken yet. Invalid entries
// abort the run; earlier entries stay created.
func Apply(ctx context.Context, c Creator, f File, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "seed")

	var res Result
	for i, in := range f.Alerts {
		name := strings.TrimSpace(*in.Name)
		exists, err := c.NameExists(ctx, name)
		if err != nil {
			return res, fmt.Errorf("alerts[%d] %q: %w", i, name, err)
		}
		if exists {
			res.Skipped++
			logger.Debug("alert exists, skipping", "alert", name)
			continue
		}
		a, err := c.Create(ctx, in)
		if err != nil {
			return res, fmt.Errorf("alerts[%d] %q: %w", i, name, err)
		}
		res.Created++
		logger.Info("alert seeded", "alert_id", a.ID, "alert", a.Name)
	}
	return res, nil
}
