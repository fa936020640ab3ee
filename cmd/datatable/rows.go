package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/datatable"
	"github.com/iota-pico/iota-pico-storage-sub001/pkg/storeenv"
)

// rowTable is the surface shared by plain and signed tables.
type rowTable interface {
	Save(ctx context.Context, id string, row json.RawMessage) error
	Get(ctx context.Context, id string) (*json.RawMessage, error)
	Remove(ctx context.Context, id string) error
	IDs(ctx context.Context) ([]string, error)
}

type session struct {
	env    *storeenv.Env
	table  rowTable
	signed *datatable.SignedTable[json.RawMessage]
}

func (s *session) Close() error {
	return s.env.Close()
}

// open builds the table selected by flags: signed when a public key is
// given, plain otherwise.
func (a *app) open(ctx context.Context) (*session, error) {
	priv, pub, err := a.keys()
	if err != nil {
		return nil, err
	}
	env, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	s := &session{env: env}
	name := a.v.GetString("table")

	switch {
	case pub == "":
		s.table, err = datatable.New[json.RawMessage](env.Storage, name)
	case priv == "":
		s.signed, err = datatable.NewSignedReader[json.RawMessage](env.Storage, name, pub)
		s.table = s.signed
	default:
		s.signed, err = datatable.NewSigned[json.RawMessage](env.Storage, name, priv, pub)
		s.table = s.signed
	}
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	return s, nil
}

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <id> <json|->",
		Short: "Save a row; '-' reads the row from stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(args[1])
			if args[1] == "-" {
				var err error
				if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if !json.Valid(raw) {
				return errors.New("row must be valid JSON")
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return s.table.Save(cmd.Context(), args[0], json.RawMessage(raw))
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a row, verifying it when a public key is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			row, err := s.table.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("row %q not found", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(*row))
			return err
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"remove"},
		Short:   "Remove rows",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			for _, id := range args {
				if err := s.table.Remove(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List row ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			ids, err := s.table.IDs(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) > 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ids, "\n"))
			}
			return err
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id>...",
		Short: "Check row signatures without decoding them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if s.signed == nil {
				return errors.New("verify needs --public-key")
			}
			failed := 0
			out := cmd.OutOrStdout()
			for _, id := range args {
				found, err := s.signed.Verify(cmd.Context(), id)
				switch {
				case err != nil:
					failed++
					fmt.Fprintf(out, "%s\tFAIL\t%v\n", id, err)
				case !found:
					fmt.Fprintf(out, "%s\tMISSING\n", id)
				default:
					fmt.Fprintf(out, "%s\tOK\n", id)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rows failed verification", failed, len(args))
			}
			return nil
		},
	}
}
