// Package verifycmder provides the verify command checking a payment
// reference against the ledger.
package verifycmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/api"
	"github.com/aona-labs/aona/cmd/aona/stack"
	"github.com/aona-labs/aona/pkg/cliui"
	"github.com/aona-labs/aona/pkg/config"
	"github.com/aona-labs/aona/pkg/logger"
	"github.com/aona-labs/aona/pkg/payment"
)

type verifyCommander struct {
	amount     uint64
	recipient  string
	token      string
	remote     bool
	gateTarget string
	ledger     string
	rpcURL     string

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

const verifyLongDesc string = `Verify a payment reference.

The transaction must be confirmed, pay at least --amount minimal units to
--recipient and, when --token is set, be denominated in that token.

The check runs against the configured ledger. With --remote, or with the
in-memory ledger whose transactions only exist inside the gate process, the
check is delegated to the gate at --gate-target.`

const verifyShortDesc string = "Verify a payment reference"

var verifyFlags = []string{
	config.FlagRecipient,
	config.FlagGateTarget,
	config.FlagLedger,
	config.FlagRPCURL,
}

func NewVerifyCmd() *cobra.Command {
	cmder := &verifyCommander{}

	cmd := &cobra.Command{
		Use:   "verify <reference>",
		Short: verifyShortDesc,
		Long:  verifyLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.NewLogger(cmder.debug)

			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, verifyFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer cmder.logger.Sync()

			if cmder.amount == 0 {
				return errors.New("--amount must be positive")
			}

			result, err := cmder.verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			if !result.Valid {
				return fmt.Errorf("payment rejected: %s", result.Reason.Message())
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&cmder.amount, "amount", 0, "Minimum amount in minimal units")
	cmd.Flags().StringVar(&cmder.token, "token", "", "Expected token symbol (default: any)")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Ask the gate to verify the payment")
	config.AddStringFlag(cmd, config.Flags, config.FlagRecipient, &cmder.recipient)
	config.AddStringFlag(cmd, config.Flags, config.FlagGateTarget, &cmder.gateTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagLedger, &cmder.ledger)
	config.AddStringFlag(cmd, config.Flags, config.FlagRPCURL, &cmder.rpcURL)

	return cmd
}

func (c *verifyCommander) verify(ctx context.Context, ref string) (payment.Result, error) {
	v := c.viper
	want := payment.Expected{
		Amount:    c.amount,
		Recipient: v.GetString("gate.recipient"),
		Token:     c.token,
	}
	if want.Recipient == "" {
		return payment.Result{}, errors.New("--recipient is required")
	}

	if c.remote || v.GetString("ledger.provider") == stack.LedgerMemory {
		return verifyRemote(ctx, v.GetString("agent.gate_target"), ref, want)
	}

	chain, err := stack.OpenLedger(ctx, v, c.logger)
	if err != nil {
		return payment.Result{}, err
	}
	defer chain.Close()

	verifier, err := stack.NewVerifier(v, chain.Reader(), c.logger)
	if err != nil {
		return payment.Result{}, err
	}
	return verifier.Verify(ctx, ref, want), nil
}

func verifyRemote(ctx context.Context, target, ref string, want payment.Expected) (payment.Result, error) {
	body, err := json.Marshal(api.VerifyRequest{
		Signature:      ref,
		ExpectedAmount: want.Amount,
		Recipient:      want.Recipient,
		Token:          want.Token,
	})
	if err != nil {
		return payment.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target+"/payments/verify", bytes.NewReader(body))
	if err != nil {
		return payment.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return payment.Result{}, fmt.Errorf("contacting gate at %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return payment.Result{}, fmt.Errorf("gate returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out api.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return payment.Result{}, fmt.Errorf("decoding verify response: %w", err)
	}
	return out.Payment, nil
}

func printResult(w io.Writer, r payment.Result) {
	mark := cliui.SuccessMark
	if !r.Valid {
		mark = cliui.FailMark
	}
	fmt.Fprintf(w, "\n  %s %s\n\n", mark, cliui.ValueStyle.Render(r.Reason.Message()))

	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-10s", k)), v)
		}
	}
	row("reference", r.Ref)
	row("payer", r.Payer)
	row("recipient", r.Recipient)
	if r.Amount > 0 {
		row("amount", fmt.Sprintf("%d %s", r.Amount, r.Token))
	}
	if r.Excess > 0 {
		row("excess", fmt.Sprintf("%d", r.Excess))
	}
	if !r.ConfirmedAt.IsZero() {
		row("confirmed", r.ConfirmedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintln(w)
}
