// Package seed loads demo accounts and listings from a YAML fixture.
package seed

import (
	"context"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/service"
	"dorm_match_backend/internal/util"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Users    []UserFixture    `yaml:"users"`
	Listings []ListingFixture `yaml:"listings"`
}

type UserFixture struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type ListingFixture struct {
	Owner        string   `yaml:"owner"` // email of a lister in Users
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Address      string   `yaml:"address"`
	City         string   `yaml:"city"`
	RentCents    int      `yaml:"rent_cents"`
	MaxOccupants int      `yaml:"max_occupants"`
	Amenities    []string `yaml:"amenities"`
}

func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

type Result struct {
	UsersCreated    int
	UsersSkipped    int
	ListingsCreated int
}

// Apply registers the fixture users and publishes their listings. Users whose
// email already exists are skipped together with their listings, so running
// Apply twice does not duplicate data.
func Apply(ctx context.Context, f *Fixture, auth *service.AuthService, listings *service.ListingService) (*Result, error) {
	res := &Result{}
	owners := make(map[string]uint)

	for _, u := range f.Users {
		user := &model.User{
			Name:     u.Name,
			Email:    u.Email,
			Password: u.Password,
			Role:     model.UserRole(u.Role),
		}
		err := auth.Register(ctx, user)
		switch {
		case errors.Is(err, util.ErrEmailRegistered):
			res.UsersSkipped++
			continue
		case err != nil:
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}
		res.UsersCreated++
		if user.Role == model.Lister {
			owners[u.Email] = user.ID
		}
	}

	for _, l := range f.Listings {
		ownerID, ok := owners[l.Owner]
		if !ok {
			continue
		}
		in := service.ListingInput{
			Title:        l.Title,
			Description:  l.Description,
			Address:      l.Address,
			City:         l.City,
			RentCents:    l.RentCents,
			MaxOccupants: l.MaxOccupants,
			Amenities:    l.Amenities,
		}
		if _, err := listings.Create(ctx, ownerID, in, nil); err != nil {
			return res, fmt.Errorf("listing %q: %w", l.Title, err)
		}
		res.ListingsCreated++
	}
	return res, nil
}
