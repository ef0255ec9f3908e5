package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agrilog/internal/adapters/exports"
	"agrilog/internal/core"
	"agrilog/pkg/domain"
)

type exportFlags struct {
	email    string
	formats  []string
	status   string
	year     int
	fieldID  string
	cropType string
}

func newExportCmd(a *app) *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's cultivation history to the blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(flags.email) == "" {
				return errors.New("--email is required")
			}
			ctx := cmd.Context()
			env, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := env.Close(); err != nil {
					a.logger.Warn("close stores", zap.Error(err))
				}
			}()

			user, err := env.svc.GetUserByEmail(ctx, flags.email)
			if err != nil {
				return err
			}
			formats := make([]exports.Format, 0, len(flags.formats))
			for _, raw := range flags.formats {
				format, err := exports.ParseFormat(raw)
				if err != nil {
					return err
				}
				formats = append(formats, format)
			}
			status := domain.CultivationStatus(strings.ToUpper(flags.status))
			if status != "" && !status.Valid() {
				return fmt.Errorf("unknown status %q", flags.status)
			}

			worker := exports.NewWorker(env.svc, env.blobs, exports.WithLogger(a.logger.Named("exports")))
			record, err := worker.Run(ctx, exports.Input{
				OwnerID: user.ID,
				Formats: formats,
				Filter: core.HistoryFilter{
					Status:     status,
					Year:       flags.year,
					FieldID:    flags.fieldID,
					CropTypeID: flags.cropType,
				},
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		},
	}
	cmd.Flags().StringVar(&flags.email, "email", "", "email of the account to export")
	cmd.Flags().StringSliceVar(&flags.formats, "format", nil, "formats to render (csv, json); default both")
	cmd.Flags().StringVar(&flags.status, "status", "", "only cultivations with this status (PG, CP, CL)")
	cmd.Flags().IntVar(&flags.year, "year", 0, "only cultivations of this year")
	cmd.Flags().StringVar(&flags.fieldID, "field", "", "only cultivations on this field id")
	cmd.Flags().StringVar(&flags.cropType, "crop-type", "", "only cultivations of this crop type id")
	return cmd
}
