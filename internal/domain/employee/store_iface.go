package employee

import (
	"context"
	"time"
)

type StoreAPI interface {
	Get(ctx context.Context, id string) (Employee, bool, error)
	List(ctx context.Context) ([]Employee, error)
	Ensure(ctx context.Context, emp Employee) error
	UpdateProfile(ctx context.Context, id string, profile Profile) (bool, error)
	TouchLastLogged(ctx context.Context, id string, at time.Time) error
	Exists(ctx context.Context, id string) (bool, error)
}
