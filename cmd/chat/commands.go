package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/rag"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			asst, err := a.newAssistant(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.respond(ctx, asst, strings.Join(args, " "), provider))
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "model provider: openai, deepseek or ollama")
	return cmd
}

func newReplCmd(a *app) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat interactively; type exit to quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			asst, err := a.newAssistant(ctx)
			if err != nil {
				return err
			}
			return a.repl(ctx, asst, provider, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "model provider: openai, deepseek or ollama")
	return cmd
}

func newIndexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the retrieval index and print its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asst, err := a.newAssistant(cmd.Context())
			if err != nil {
				return err
			}
			built, docs := asst.IndexStatus()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog parts:   %d\n", asst.Catalog().Len())
			fmt.Fprintf(out, "index backend:   %s\n", a.cfg.IndexBackend)
			fmt.Fprintf(out, "index built:     %t\n", built)
			fmt.Fprintf(out, "index documents: %d\n", docs)
			if !built {
				return errors.New("index not built; check embedding credentials")
			}
			return nil
		},
	}
}

func (a *app) repl(ctx context.Context, asst *rag.Assistant, provider string, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := sc.Text()
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "exit", "quit":
			return nil
		}
		fmt.Fprintln(out, a.respond(ctx, asst, line, provider))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// respond maps assistant errors to the customer-facing replies.
func (a *app) respond(ctx context.Context, asst *rag.Assistant, message, provider string) string {
	p, known := domain.NormalizeProvider(provider, a.cfg.DefaultProvider)
	if !known {
		a.logger.Warn("unknown provider, using default", "requested", provider, "provider", p)
	}
	reply, err := asst.Answer(ctx, message, p)
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return rag.EmptyMessageReply
	case err != nil:
		a.logger.Error("answer generation failed", "err", err, "route", reply.Route.String())
		return rag.FailureReply
	}
	return reply.Text
}
