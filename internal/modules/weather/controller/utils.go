package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gameguyr/tempest/internal/utils"
)

const (
	defaultLimit      = 100
	maxLimit          = 1000
	defaultStatsHours = 24
	maxStatsHours     = 24 * 30
)

func parseReadingsQuery(r *http.Request) (from time.Time, to time.Time, limit int, err error) {
	q := r.URL.Query()

	if s := q.Get("from"); s != "" {
		from, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, 0, errors.New("invalid 'from' (expected RFC3339)")
		}
	}
	if s := q.Get("to"); s != "" {
		to, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, 0, errors.New("invalid 'to' (expected RFC3339)")
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, 0, errors.New("'from' must be <= 'to'")
	}

	limit, err = utils.QueryInt(r, "limit", defaultLimit, 1, maxLimit)
	if err != nil {
		return time.Time{}, time.Time{}, 0, err
	}
	return from, to, limit, nil
}

func parseLatestQuery(r *http.Request) (int, error) {
	return utils.QueryInt(r, "limit", defaultLimit, 1, maxLimit)
}

// parseLatestAllQuery defaults to the single newest reading.
func parseLatestAllQuery(r *http.Request) (int, error) {
	return utils.QueryInt(r, "limit", 1, 1, maxLimit)
}

func parseStatsQuery(r *http.Request) (int, error) {
	return utils.QueryInt(r, "hours", defaultStatsHours, 1, maxStatsHours)
}
