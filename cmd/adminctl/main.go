// Command adminctl signs in to the admin API and runs one command against it:
//
//	adminctl [-email e] [-password p] list <resource> [page]
//	adminctl block|unblock <user-id>
//	adminctl listen
//	adminctl logout
//
// listen keeps the session open until another panel on the same channel logs out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/admin-session/adminapi"
	"github.com/jrsteele09/admin-session/internal/config"
	"github.com/jrsteele09/admin-session/internal/logging"
	"github.com/jrsteele09/admin-session/internal/utils"
	"github.com/jrsteele09/admin-session/navigation"
	"github.com/jrsteele09/admin-session/panel"
	"github.com/jrsteele09/admin-session/session"
	"github.com/jrsteele09/admin-session/sessionapi"
)

func main() {
	c := config.New()
	var (
		email    = flag.String("email", c.GetAdminEmail(), "admin email")
		password = flag.String("password", c.GetAdminPassword(), "admin password")
	)
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logging.New(c)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, sessionapi.Credentials{Email: *email, Password: *password}, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c config.Config, creds sessionapi.Credentials, args []string) error {
	navigated := make(chan string, 8)
	nav := navigation.Func(func(path string) {
		log.Debug().Str("path", path).Msg("navigate")
		select {
		case navigated <- path:
		default:
		}
	})

	p, err := panel.New(ctx, c, panel.WithNavigator(nav))
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Session.Login(ctx, creds); err != nil {
		return errors.New(session.Message(err))
	}
	if p.Session.State().IsAdmin != session.True {
		return errors.Errorf("%s is not an admin", creds.Email)
	}

	switch args[0] {
	case "list":
		if len(args) < 2 {
			return errors.New("usage: list <resource> [page]")
		}
		page := 1
		if len(args) > 2 {
			if page, err = strconv.Atoi(args[2]); err != nil {
				return errors.Wrap(err, "page")
			}
		}
		return list(ctx, p.Admin, args[1], page)
	case "block", "unblock":
		if len(args) < 2 {
			return errors.Errorf("usage: %s <user-id>", args[0])
		}
		user, err := p.Admin.UserPatches.Update(ctx, args[1], adminapi.UserPatch{Blocked: utils.Ptr(args[0] == "block")})
		if err != nil {
			return err
		}
		return printJSON(user)
	case "listen":
		log.Info().Str("channel", c.GetAuthChannel()).Msg("waiting for logout")
		for {
			select {
			case <-ctx.Done():
				p.Session.Logout(context.WithoutCancel(ctx))
				return nil
			case path := <-navigated:
				if path == c.GetPublicPath() {
					log.Info().Msg("logged out by another panel")
					return nil
				}
			}
		}
	case "logout":
		p.Session.Logout(ctx)
		return nil
	}
	return errors.Errorf("unknown command %q", args[0])
}

func list(ctx context.Context, admin *adminapi.Client, resource string, page int) error {
	var (
		out any
		err error
	)
	switch resource {
	case "users":
		out, err = admin.Users.List(ctx, page)
	case "universities":
		out, err = admin.Universities.List(ctx, page)
	case "faculties":
		out, err = admin.Faculties.List(ctx, page)
	case "professors":
		out, err = admin.Professors.List(ctx, page)
	case "semesters":
		out, err = admin.Semesters.List(ctx, page)
	default:
		return errors.Errorf("unknown resource %q", resource)
	}
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
