package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gameguyr/tempest/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 1_000_000
)

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid alert id")
	}
	return id, nil
}

// parseEnabled reads ?enabled=; absent means flip the current state.
func parseEnabled(r *http.Request) (*bool, error) {
	s := r.URL.Query().Get("enabled")
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, errors.New("invalid 'enabled' (expected true or false)")
	}
	return &b, nil
}

func parsePageQuery(r *http.Request) (page, size int, err error) {
	if page, err = utils.QueryInt(r, "page", 0, 0, maxPage); err != nil {
		return 0, 0, err
	}
	if size, err = utils.QueryInt(r, "size", defaultPageSize, 1, maxPageSize); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}
