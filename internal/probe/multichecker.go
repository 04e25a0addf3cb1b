package probe

import (
	"context"

	"github.com/hamed0406/watchmen/internal/domain"
)

// All runs every prober in order and fails on the first failing one. The
// response of the last prober is returned when all pass.
type All struct {
	Probers []Prober
}

func NewAll(probers ...Prober) *All {
	return &All{Probers: probers}
}

func (m *All) Check(ctx context.Context, svc domain.Service) Response {
	var out Response
	for _, p := range m.Probers {
		if p == nil {
			continue
		}
		out = p.Check(ctx, svc)
		if out.Err != nil {
			return out
		}
	}
	return out
}
