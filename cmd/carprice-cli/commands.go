package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"carprice/internal/api"
	"carprice/internal/client"

	"github.com/urfave/cli/v2"
)

func commands(s *session) []*cli.Command {
	return []*cli.Command{
		loginCmd(s),
		registerCmd(s),
		logoutCmd(s),
		whoamiCmd(s),
		predictCmd(s),
		historyCmd(s),
		optionsCmd(s),
		brandsCmd(s),
	}
}

func loginCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"CARPRICE_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			user, err := s.client.Login(c.Context, c.String("username"), c.String("password"))
			if errors.Is(err, client.ErrUnauthorized) {
				return errors.New("invalid username or password")
			}
			if err != nil {
				return explain(err)
			}
			s.store.Login(*user)
			fmt.Printf("Signed in as %s (%s)\n", user.Username, user.Email)
			return nil
		},
	}
}

func registerCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"CARPRICE_PASSWORD"}},
			&cli.StringFlag{Name: "first-name", Required: true},
			&cli.StringFlag{Name: "last-name", Required: true},
		},
		Action: func(c *cli.Context) error {
			req := api.RegisterRequest{
				Username:  c.String("username"),
				Email:     c.String("email"),
				Password:  c.String("password"),
				Password2: c.String("password"),
				FirstName: c.String("first-name"),
				LastName:  c.String("last-name"),
			}
			if err := s.client.Register(c.Context, req); err != nil {
				return explain(err)
			}
			user, err := s.client.Login(c.Context, req.Username, req.Password)
			if err != nil {
				return explain(err)
			}
			s.store.Login(*user)
			fmt.Printf("Account %s created, signed in\n", user.Username)
			return nil
		},
	}
}

func logoutCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "End the stored session",
		Action: func(c *cli.Context) error {
			s.logout(c.Context)
			fmt.Println("Signed out")
			return nil
		},
	}
}

func whoamiCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user",
		Action: func(c *cli.Context) error {
			sess := s.store.Init(c.Context)
			if !sess.Authenticated() {
				fmt.Println("Not signed in")
				return nil
			}
			return printJSON(sess.User)
		},
	}
}

func predictCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Estimate a car's price; stored in history when signed in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "brand", Required: true},
			&cli.StringFlag{Name: "model", Required: true},
			&cli.IntFlag{Name: "year", Required: true},
			&cli.IntFlag{Name: "mileage", Usage: "km"},
			&cli.StringFlag{Name: "fuel"},
			&cli.StringFlag{Name: "transmission"},
			&cli.StringFlag{Name: "body"},
			&cli.Float64Flag{Name: "engine", Usage: "engine capacity in dm3"},
			&cli.IntFlag{Name: "power", Usage: "hp"},
			&cli.IntFlag{Name: "doors"},
			&cli.StringFlag{Name: "color"},
			&cli.BoolFlag{Name: "guest", Usage: "do not store the prediction"},
		},
		Action: func(c *cli.Context) error {
			attrs := api.CarAttributes{
				Brand:            c.String("brand"),
				CarModel:         c.String("model"),
				YearOfProduction: c.Int("year"),
				Mileage:          c.Int("mileage"),
				FuelType:         c.String("fuel"),
				Transmission:     c.String("transmission"),
				Body:             c.String("body"),
				EngineCapacity:   c.Float64("engine"),
				Power:            c.Int("power"),
				NumberOfDoors:    c.Int("doors"),
				Color:            c.String("color"),
			}
			if c.Bool("guest") {
				p, err := s.client.PredictGuest(c.Context, attrs)
				if err != nil {
					return explain(err)
				}
				return printJSON(p)
			}
			p, err := s.client.Predict(c.Context, attrs)
			if err != nil {
				return explain(err)
			}
			return printJSON(p)
		},
	}
}

func historyCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List stored predictions",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Value: api.DefaultPageSize},
			&cli.StringFlag{Name: "sort", Usage: "timestamp, -timestamp, predicted_price or -predicted_price"},
			&cli.StringFlag{Name: "from", Usage: "start date, " + api.DateLayout},
			&cli.StringFlag{Name: "to", Usage: "end date, " + api.DateLayout},
			&cli.Float64Flag{Name: "min-price"},
			&cli.Float64Flag{Name: "max-price"},
			&cli.StringFlag{Name: "brand"},
			&cli.StringFlag{Name: "model"},
		},
		Action: func(c *cli.Context) error {
			q := api.HistoryQuery{
				Page:     c.Int("page"),
				PageSize: c.Int("page-size"),
				Sort:     c.String("sort"),
				Brand:    c.String("brand"),
				CarModel: c.String("model"),
			}
			var err error
			if q.StartDate, err = parseDate(c.String("from")); err != nil {
				return err
			}
			if q.EndDate, err = parseDate(c.String("to")); err != nil {
				return err
			}
			if c.IsSet("min-price") {
				v := c.Float64("min-price")
				q.MinPrice = &v
			}
			if c.IsSet("max-price") {
				v := c.Float64("max-price")
				q.MaxPrice = &v
			}

			page, err := s.client.History(c.Context, q)
			if err != nil {
				return explain(err)
			}
			return printJSON(page)
		},
	}
}

func optionsCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "options",
		Usage: "Show the values the prediction form accepts",
		Action: func(c *cli.Context) error {
			opts, err := s.client.DropdownOptions(c.Context)
			if err != nil {
				return explain(err)
			}
			return printJSON(opts)
		},
	}
}

func brandsCmd(s *session) *cli.Command {
	return &cli.Command{
		Name:  "brands",
		Usage: "Show the models known for each brand",
		Action: func(c *cli.Context) error {
			mapping, err := s.client.BrandModelMapping(c.Context)
			if err != nil {
				return explain(err)
			}
			return printJSON(mapping)
		},
	}
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(api.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want %s", v, api.DateLayout)
	}
	return t, nil
}

// explain turns client errors into messages for a terminal user.
func explain(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrRefreshFailed):
		return fmt.Errorf("session expired, run `%s login` again", appName)
	case errors.Is(err, client.ErrUnauthorized):
		return fmt.Errorf("not signed in, run `%s login` first", appName)
	case errors.As(err, &apiErr) && apiErr.IsValidation():
		_ = printJSON(apiErr.Fields)
		return errors.New("the request was rejected")
	default:
		return err
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
