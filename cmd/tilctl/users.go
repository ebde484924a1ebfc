package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tilgate/internal/bootstrap"
	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	svcadmin "github.com/dropDatabas3/tilgate/internal/http/services/admin"
	svcauth "github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/store"
)

// opsDeps: lo que necesitan los comandos que tocan cuentas.
type opsDeps struct {
	store     *store.Store
	tokens    *svcauth.TokenService
	lifecycle *svcadmin.LifecycleService
	close     func()
}

func (e *env) ops(ctx context.Context) (*opsDeps, error) {
	st, err := e.openStore(ctx)
	if err != nil {
		return nil, err
	}
	tokens := svcauth.NewTokenService(svcauth.TokenDeps{Tokens: st.Tokens, Users: st.Users})

	deps := svcadmin.LifecycleDeps{Users: st.Users, Tokens: tokens}
	closeFn := st.Close
	// Con redis las sesiones son compartidas: se pueden cortar desde acá.
	if e.cfg.Cache.Kind == "redis" {
		c, err := e.openCache()
		if err != nil {
			st.Close()
			return nil, err
		}
		deps.Sessions = session.NewManager(session.Deps{
			Store: session.NewStore(c, e.cfg.Auth.Session.TTL),
			Users: st.Users,
		})
		closeFn = func() {
			_ = c.Close()
			st.Close()
		}
	}
	return &opsDeps{store: st, tokens: tokens, lifecycle: svcadmin.NewLifecycleService(deps), close: closeFn}, nil
}

// resolveUser acepta id o username.
func resolveUser(ctx context.Context, users repository.UserRepository, ref string) (*repository.User, error) {
	if u, err := users.GetByID(ctx, ref, true); err == nil {
		return u, nil
	} else if !repository.IsNotFound(err) {
		return nil, err
	}
	u, err := users.GetByUsername(ctx, ref)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("user %q not found", ref)
	}
	return u, err
}

func newUserCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Ciclo de vida de cuentas (actúa como operador del sistema)",
	}

	var includeDeleted bool
	list := &cobra.Command{
		Use:   "list",
		Short: "Lista usuarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := e.ops(ctx)
			if err != nil {
				return err
			}
			defer o.close()
			us, err := o.store.Users.List(ctx, includeDeleted)
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), us)
			return nil
		},
	}
	list.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Incluir cuentas soft-deleted")

	lifecycle := func(use, short string, fn func(ctx context.Context, o *opsDeps, id string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id|username>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				o, err := e.ops(ctx)
				if err != nil {
					return err
				}
				defer o.close()
				u, err := resolveUser(ctx, o.store.Users, args[0])
				if err != nil {
					return err
				}
				if err := fn(ctx, o, u.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s ok\n", use, u.Username)
				return nil
			},
		}
	}

	softDelete := lifecycle("soft-delete", "Soft-delete: la cuenta deja de poder autenticarse", func(ctx context.Context, o *opsDeps, id string) error {
		return o.lifecycle.SoftDelete(ctx, svcadmin.SystemActor, id)
	})
	restore := lifecycle("restore", "Restaura una cuenta soft-deleted", func(ctx context.Context, o *opsDeps, id string) error {
		return o.lifecycle.Restore(ctx, svcadmin.SystemActor, id)
	})
	hardDelete := lifecycle("hard-delete", "Borra la cuenta y todo lo que posee", func(ctx context.Context, o *opsDeps, id string) error {
		return o.lifecycle.HardDelete(ctx, svcadmin.SystemActor, id)
	})

	setRole := &cobra.Command{
		Use:   "set-role <id|username> <admin|standard|restricted>",
		Short: "Cambia el rol de una cuenta",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := types.ParseRole(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			o, err := e.ops(ctx)
			if err != nil {
				return err
			}
			defer o.close()
			u, err := resolveUser(ctx, o.store.Users, args[0])
			if err != nil {
				return err
			}
			if err := o.lifecycle.SetRole(ctx, svcadmin.SystemActor, u.ID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s role=%s\n", u.Username, role)
			return nil
		},
	}

	cmd.AddCommand(list, softDelete, restore, hardDelete, setRole)
	return cmd
}

func printUsers(w io.Writer, us []repository.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tROLE\tDELETED")
	for _, u := range us {
		deleted := "-"
		if u.DeletedAt != nil {
			deleted = u.DeletedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Role, deleted)
	}
	_ = tw.Flush()
}

func newSeedAdminCmd(e *env) *cobra.Command {
	var username, secret string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Crea el usuario admin si no existe (idempotente)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if username == "" {
				username = e.cfg.Bootstrap.AdminUsername
			}
			if secret == "" {
				secret = e.cfg.Bootstrap.AdminPassword
			}
			created, err := bootstrap.EnsureAdmin(ctx, bootstrap.AdminConfig{Users: st.Users, Username: username, Password: secret})
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %q created\n", username)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %q already exists\n", username)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (default bootstrap.admin_username)")
	cmd.Flags().StringVar(&secret, "password", "", "Password (default bootstrap.admin_password)")
	return cmd
}

// newHashPasswordCmd lee el secreto de stdin (una línea) e imprime el PHC.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hashea un password leído de stdin (argon2id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			h, err := password.Hash(password.Default, strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func newPurgeTokensCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Elimina bearer tokens vencidos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := e.ops(ctx)
			if err != nil {
				return err
			}
			defer o.close()
			n, err := o.tokens.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d\n", n)
			return nil
		},
	}
}
