package limits

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-crm/harrier/internal/domain"
)

type fakeTenants struct {
	tenant *domain.Tenant
	err    error
}

func (f *fakeTenants) GetTenant(context.Context, string) (*domain.Tenant, error) {
	return f.tenant, f.err
}

type fakeCounter struct {
	count int64
	err   error
}

func (f *fakeCounter) CountLeads(context.Context, string) (int64, error) {
	return f.count, f.err
}

func TestCheckAllowance(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		tenant  *domain.Tenant
		count   int64
		wantErr error
	}{
		{
			name:   "starter under cap",
			tenant: &domain.Tenant{ID: "t1", Plan: domain.PlanStarter, LeadLimit: 500},
			count:  499,
		},
		{
			name:    "starter at cap",
			tenant:  &domain.Tenant{ID: "t1", Plan: domain.PlanStarter, LeadLimit: 500},
			count:   500,
			wantErr: ErrLeadLimitReached,
		},
		{
			name:    "growth over cap",
			tenant:  &domain.Tenant{ID: "t1", Plan: domain.PlanGrowth, LeadLimit: 2000},
			count:   2500,
			wantErr: ErrLeadLimitReached,
		},
		{
			name:   "pro is unlimited",
			tenant: &domain.Tenant{ID: "t1", Plan: domain.PlanPro},
			count:  1_000_000,
		},
		{
			name:   "zero stored limit falls back to plan",
			tenant: &domain.Tenant{ID: "t1", Plan: domain.PlanStarter},
			count:  100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeTenants{tenant: tt.tenant}, &fakeCounter{count: tt.count}, nil, nil)
			err := svc.CheckAllowance(ctx, "t1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckAllowance() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("tenant load failure surfaces", func(t *testing.T) {
		svc := NewService(&fakeTenants{err: errors.New("not found")}, &fakeCounter{}, nil, nil)
		if err := svc.CheckAllowance(ctx, "t1"); err == nil {
			t.Fatal("expected error")
		}
	})
}
