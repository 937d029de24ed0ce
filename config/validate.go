package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Scan,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ScanConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ScanConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Interval, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.MaxConcurrency, validation.Required, validation.Min(1)),
					validation.Field(&sc.ICMPTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.TCPPort, validation.Required, validation.Min(1), validation.Max(65535)),
					validation.Field(&sc.TCPTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.FetchTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Batch,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BatchConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BatchConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.Endpoints, validation.Each(validation.By(validateServerURL))),
					validation.Field(&bc.Strategy,
						validation.Required,
						validation.In(StrategyOrdered, StrategyRoundRobin, StrategyLeastResponse),
					),
					validation.Field(&bc.Timeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&bc.ResetTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Inventory,
			validation.Required,
			validation.By(func(value interface{}) error {
				ic, ok := value.(InventoryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an InventoryConfig")
				}
				return validation.ValidateStruct(&ic,
					validation.Field(&ic.StoreURL, validation.By(validateOptionalURL)),
					validation.Field(&ic.StoreTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&ic.Countries,
						validation.Required,
						validation.Length(1, 0),
						validation.Each(validation.By(validateCountry)),
						validation.By(validateCountryCodes),
					),
				)
			}),
		),
		validation.Field(&c.Ledger,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LedgerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LedgerConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Capacity, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

func validateCountry(value interface{}) error {
	country, ok := value.(CountryConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a CountryConfig")
	}
	return validation.ValidateStruct(&country,
		validation.Field(&country.Name, validation.Required),
		validation.Field(&country.Code, validation.Required, validation.Length(1, 16), is.Alphanumeric),
		validation.Field(&country.Clubs,
			validation.Each(validation.By(validateClub)),
			validation.By(validateClubSlugs),
		),
	)
}

// validateCountryCodes rejects two countries sharing a code. Codes are
// compared case-insensitively since target ids and store keys lower-case them.
func validateCountryCodes(value interface{}) error {
	countries, ok := value.([]CountryConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of countries")
	}
	seen := make(map[string]string, len(countries))
	for _, country := range countries {
		code := strings.ToLower(country.Code)
		if prev, dup := seen[code]; dup {
			return validation.NewError("validation_duplicate_code",
				fmt.Sprintf("country code %q is used by both %q and %q", country.Code, prev, country.Name))
		}
		seen[code] = country.Name
	}
	return nil
}

// validateClubSlugs rejects clubs of one country whose names reduce to the
// same slug, or to none at all.
func validateClubSlugs(value interface{}) error {
	clubs, ok := value.([]ClubConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of clubs")
	}
	seen := make(map[string]string, len(clubs))
	for _, club := range clubs {
		slug := ClubSlug(club.Name)
		if slug == "" {
			if strings.TrimSpace(club.Name) == "" {
				continue // reported by validateClub
			}
			return validation.NewError("validation_empty_slug",
				fmt.Sprintf("club name %q needs at least one letter or digit", club.Name))
		}
		if prev, dup := seen[slug]; dup {
			return validation.NewError("validation_duplicate_club",
				fmt.Sprintf("clubs %q and %q collide as %q", prev, club.Name, slug))
		}
		seen[slug] = club.Name
	}
	return nil
}

// ClubSlug lower-cases name and collapses every run of characters that are
// not letters or digits into a single underscore. It keys clubs in target
// ids and in the central store.
func ClubSlug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

func validateClub(value interface{}) error {
	club, ok := value.(ClubConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ClubConfig")
	}
	return validation.ValidateStruct(&club,
		validation.Field(&club.Name, validation.Required),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateOptionalURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if raw == "" {
		return nil
	}
	return validateServerURL(raw)
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
