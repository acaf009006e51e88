package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/spf13/cobra"
)

var (
	flagFormat string
	flagStatus string
	flagOut    string
)

func init() {
	exportCmd.Flags().StringVar(&flagFormat, "format", "csv", "Output format: csv or json")
	exportCmd.Flags().StringVar(&flagStatus, "status", "", "Only export submissions in this status (pending, confirmed, failed)")
	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "", "Write to file instead of stdout")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export submission records as csv or json",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatus(flagStatus)
		if err != nil {
			return err
		}
		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListSubmissions(cmd.Context(), status)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagOut != "" {
			f, err := os.Create(flagOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", flagOut, err)
			}
			defer f.Close()
			out = f
		}
		return writeSubmissions(out, flagFormat, records)
	},
}

func parseStatus(s string) (bridge.SubmissionStatus, error) {
	switch st := bridge.SubmissionStatus(strings.ToLower(s)); st {
	case "", bridge.StatusPending, bridge.StatusConfirmed, bridge.StatusFailed:
		return st, nil
	default:
		return "", bridge.ConfigErrorf("unknown status %q", s)
	}
}

type exportRow struct {
	IdempotencyKey string `json:"idempotency_key"`
	Chain          string `json:"chain"`
	Block          uint64 `json:"block"`
	LogIndex       uint   `json:"log_index"`
	SourceTx       string `json:"source_tx"`
	Target         string `json:"target"`
	Function       string `json:"function"`
	TxHash         string `json:"tx_hash"`
	Nonce          uint64 `json:"nonce"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

var csvHeader = []string{
	"idempotency_key", "chain", "block", "log_index", "source_tx",
	"target", "function", "tx_hash", "nonce", "status", "created_at", "updated_at",
}

func toRow(rec bridge.SubmissionRecord) exportRow {
	return exportRow{
		IdempotencyKey: rec.Key.String(),
		Chain:          rec.Key.Chain.String(),
		Block:          rec.Key.Block,
		LogIndex:       rec.Key.LogIndex,
		SourceTx:       rec.SourceTx.Hex(),
		Target:         rec.Target.String(),
		Function:       rec.Function,
		TxHash:         rec.TxHash.Hex(),
		Nonce:          rec.Nonce,
		Status:         string(rec.Status),
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeSubmissions(w io.Writer, format string, records []bridge.SubmissionRecord) error {
	rows := make([]exportRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRow(rec))
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write([]string{
				r.IdempotencyKey, r.Chain,
				strconv.FormatUint(r.Block, 10), strconv.FormatUint(uint64(r.LogIndex), 10),
				r.SourceTx, r.Target, r.Function, r.TxHash,
				strconv.FormatUint(r.Nonce, 10), r.Status, r.CreatedAt, r.UpdatedAt,
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return bridge.ConfigErrorf("unsupported format %q (csv or json)", format)
	}
}
