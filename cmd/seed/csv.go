package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"movie-recommender/internal/domain"
)

// readMovies reads rows with a header naming a title column and an overview
// or description column. Rows without a title are skipped.
func readMovies(r io.Reader, limit int) ([]domain.MovieHit, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed: empty csv")
		}
		return nil, fmt.Errorf("seed: read header: %w", err)
	}
	titleCol, descCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "title":
			titleCol = i
		case "overview", "description":
			if descCol == -1 {
				descCol = i
			}
		}
	}
	if titleCol == -1 || descCol == -1 {
		return nil, errors.New("seed: csv needs title and overview (or description) columns")
	}

	var movies []domain.MovieHit
	for limit <= 0 || len(movies) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("seed: read row: %w", err)
		}
		if titleCol >= len(rec) {
			continue
		}
		title := strings.TrimSpace(rec[titleCol])
		if title == "" {
			continue
		}
		var desc string
		if descCol < len(rec) {
			desc = strings.TrimSpace(rec[descCol])
		}
		movies = append(movies, domain.MovieHit{Title: title, Description: desc})
	}
	return movies, nil
}
