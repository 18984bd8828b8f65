package syncer

import "github.com/shunichi-ikebuchi/bank-statement-sync/pkg/bankapi"

// WithSessionObserver exposes each opened session to tests.
func WithSessionObserver(fn func(*bankapi.Session)) Option {
	return func(s *Service) {
		s.sessionOpened = fn
	}
}
