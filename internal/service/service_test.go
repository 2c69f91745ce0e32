package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"indieforge/backend/internal/auth"
	"indieforge/backend/internal/logging"
	"indieforge/backend/internal/metrics"
	"indieforge/backend/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	users    *UserService
	games    *GameService
	wishlist *WishlistService
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := logging.Discard()
	m := metrics.New()
	return &fixture{
		db:       db,
		users:    NewUserService(db, &auth.BcryptHasher{Cost: bcrypt.MinCost}, log),
		games:    NewGameService(db, log, m),
		wishlist: NewWishlistService(db, log, m),
		metrics:  m,
	}
}

// counterValue sums every series of the named metric.
func counterValue(t *testing.T, f *fixture, name string) float64 {
	t.Helper()
	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
