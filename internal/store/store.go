// Package store holds the per-domain state a page renders from. A store is
// created per request, filled by calling the backend, and read by templates.
package store

import "github.com/Bernard-Murphy/dbay-public/internal/apiclient"

// Status is the loading and error state shared by every store.
type Status struct {
	Loading bool
	Err     string
}

func (s *Status) begin() {
	s.Loading = true
	s.Err = ""
}

func (s *Status) finish(err error) error {
	s.Loading = false
	if err != nil {
		s.Err = apiclient.Message(err)
	}
	return err
}
