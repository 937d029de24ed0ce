package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/angeloszaimis/fleetwatch/config"
	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

// Flattener expands the configured country tree into probe targets.
type Flattener struct {
	store     Store
	countries []config.CountryConfig
	logger    *slog.Logger
}

// NewFlattener builds a flattener. A nil store behaves like NopStore.
func NewFlattener(store Store, countries []config.CountryConfig, log *slog.Logger) *Flattener {
	if store == nil {
		store = NopStore{}
	}
	return &Flattener{
		store:     store,
		countries: countries,
		logger:    logger.Component(log, "inventory"),
	}
}

// Flatten returns the targets in country, club, then server order.
func (f *Flattener) Flatten(ctx context.Context) []model.ProbeTarget {
	mapping, err := f.store.FetchAll(ctx)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			f.logger.Warn("Inventory store unreachable, using static defaults",
				slog.String("error", err.Error()))
		}
		mapping = nil
	}

	var targets []model.ProbeTarget
	for _, country := range f.countries {
		for _, club := range country.Clubs {
			servers, ok := mapping[ClubKey(country.Code, club.Name)]
			if !ok {
				servers = club.Servers
			}
			slug := config.ClubSlug(club.Name)
			for i, srv := range servers {
				address := strings.TrimSpace(srv.IP)
				name := strings.TrimSpace(srv.Name)
				if name == "" {
					name = address
				}
				targets = append(targets, model.ProbeTarget{
					ID:          fmt.Sprintf("%s/%s/%d", strings.ToLower(country.Code), slug, i),
					Address:     address,
					Name:        name,
					Club:        club.Name,
					Country:     country.Name,
					CountryCode: country.Code,
					Virtual:     country.Virtual,
				})
			}
		}
	}
	return targets
}

// ClubKey is the configuration store key of a club:
// servers_<country code>_<club slug>, all lower case.
func ClubKey(countryCode, club string) string {
	return "servers_" + strings.ToLower(countryCode) + "_" + config.ClubSlug(club)
}
