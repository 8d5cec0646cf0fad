package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/storage/postgres"
)

type seedFile struct {
	Vendors  []vendorJSON  `json:"vendors"`
	Students []studentJSON `json:"students"`
}

type vendorJSON struct {
	Email          string         `json:"email"`
	Password       string         `json:"password"`
	OwnerName      string         `json:"ownerName"`
	PhoneNumber    string         `json:"phoneNumber"`
	RestaurantName string         `json:"restaurantName"`
	Location       string         `json:"location"`
	Category       string         `json:"category"`
	Description    string         `json:"description"`
	Menu           []menuItemJSON `json:"menu"`
}

type menuItemJSON struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	IsVeg       bool            `json:"isVeg"`
	PrepTime    int             `json:"prepTime"`
}

type studentJSON struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// seeder signs accounts up through the domain services so seeded data obeys
// the same validation as the API.
type seeder struct {
	accounts *postgres.AccountRepository
	auth     *auth.Service
	vendors  *vendor.Service
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/campus.json", "path to the seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	accounts := postgres.NewAccountRepository(pool)
	s := &seeder{
		accounts: accounts,
		auth:     auth.NewService(accounts, bcrypt.DefaultCost),
		vendors:  vendor.NewService(postgres.NewVendorRepository(pool), postgres.NewMenuRepository(pool), nil),
	}

	for _, v := range seed.Vendors {
		if err := s.seedVendor(ctx, v); err != nil {
			return errors.Wrapf(err, "seed vendor %s", v.RestaurantName)
		}
	}
	for _, st := range seed.Students {
		if err := s.seedStudent(ctx, st); err != nil {
			return errors.Wrapf(err, "seed student %s", st.Email)
		}
	}

	return nil
}

// seedVendor creates the vendor account unless the email is registered and
// fills its menu only when the menu is empty, so reruns are harmless.
func (s *seeder) seedVendor(ctx context.Context, v vendorJSON) error {
	id, err := s.accountID(ctx, v.Email, func() (*auth.Account, error) {
		return s.auth.SignUpVendor(ctx, auth.VendorSignUp{
			Email:          v.Email,
			Password:       v.Password,
			OwnerName:      v.OwnerName,
			Phone:          v.PhoneNumber,
			RestaurantName: v.RestaurantName,
			Location:       v.Location,
			Description:    v.Description,
			Category:       v.Category,
		})
	})
	if err != nil {
		return err
	}

	existing, err := s.vendors.Menu(ctx, id)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		slog.Info("menu already present, skipping",
			slog.String("vendor", v.RestaurantName),
			slog.Int("items", len(existing)),
		)
		return nil
	}

	for _, m := range v.Menu {
		if _, err := s.vendors.CreateItem(ctx, id, vendor.MenuInput{
			Name:        m.Name,
			Price:       m.Price,
			Description: m.Description,
			Category:    m.Category,
			IsVeg:       m.IsVeg,
			IsAvailable: true,
			PrepTime:    m.PrepTime,
		}); err != nil {
			return errors.Wrapf(err, "create menu item %s", m.Name)
		}
	}

	slog.Info("seeded vendor",
		slog.String("id", id),
		slog.String("name", v.RestaurantName),
		slog.Int("menu_items", len(v.Menu)),
	)
	return nil
}

func (s *seeder) seedStudent(ctx context.Context, st studentJSON) error {
	id, err := s.accountID(ctx, st.Email, func() (*auth.Account, error) {
		return s.auth.SignUpStudent(ctx, auth.StudentSignUp{
			Name:     st.Name,
			Email:    st.Email,
			Password: st.Password,
		})
	})
	if err != nil {
		return err
	}

	slog.Info("seeded student", slog.String("id", id), slog.String("email", st.Email))
	return nil
}

// accountID runs signUp and falls back to the existing account when the
// email is already registered.
func (s *seeder) accountID(ctx context.Context, email string, signUp func() (*auth.Account, error)) (string, error) {
	a, err := signUp()
	if errors.Is(err, auth.ErrEmailTaken) {
		a, err = s.accounts.FindByEmail(ctx, auth.NormalizeEmail(email))
	}
	if err != nil {
		return "", err
	}
	return a.ID, nil
}
