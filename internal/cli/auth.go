package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/npezzotti/go-fellowship/internal/guard"
	"github.com/npezzotti/go-fellowship/internal/session"
	"github.com/spf13/cobra"
)

var (
	errSignInRequired = errors.New("sign in required: set CHURCHCTL_EMAIL and CHURCHCTL_PASSWORD or pass --email and --password")
	errAccessDenied   = errors.New("access denied: your role does not allow this command")
)

// authenticate restores or establishes a session and gates it on
// requiredRole the same way the web pages are gated.
func authenticate(ctx context.Context, p *session.Provider, email, password, requiredRole string) (session.State, error) {
	p.Init(ctx)
	p.Wait()

	st := p.State()
	if !st.SignedIn() && email != "" {
		if err := p.SignIn(ctx, email, password); err != nil {
			return session.State{}, err
		}
		p.Wait()
		st = p.State()
	}

	switch guard.Decide(st.Loading, st.User, st.Role, requiredRole) {
	case guard.Render:
		return st, nil
	case guard.Denied:
		return st, errAccessDenied
	case guard.Redirect:
		return st, errSignInRequired
	default:
		return st, fmt.Errorf("session still loading")
	}
}

func (e *env) authenticate(ctx context.Context, requiredRole string) (session.State, error) {
	return authenticate(ctx, e.provider, e.cfg.Email, e.cfg.Password, requiredRole)
}

func newSignUpCmd(e *env) *cobra.Command {
	var firstName, lastName, role string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a member account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.Email == "" || e.cfg.Password == "" {
				return errors.New("--email and --password are required")
			}

			ctx := cmd.Context()
			if err := e.provider.SignUp(ctx, e.cfg.Email, e.cfg.Password, firstName, lastName, role); err != nil {
				return err
			}
			e.provider.Wait()

			st := e.provider.State()
			fmt.Fprintf(e.out, "Welcome, %s! You are signed in as %s.\n", st.User.DisplayName(), st.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&role, "role", "", "requested role (accounts are always created as members)")
	return cmd
}

func newWhoAmICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.authenticate(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s <%s> (id %d, role %s)\n", st.User.DisplayName(), st.User.EmailAddress, st.User.Id, st.Role)
			return nil
		},
	}
}
