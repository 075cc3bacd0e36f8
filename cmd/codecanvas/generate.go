package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/codecanvas/pkg/server"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one generation and write the framed output to stdout",
	Example: `  codecanvas generate --prompt "a pricing card" --framework vue
  codecanvas generate --prompt "build this" --image mockup.png --history turns.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		body := server.GenerateRequest{}
		body.Prompt, _ = cmd.Flags().GetString("prompt")
		body.Framework, _ = cmd.Flags().GetString("framework")
		if path, _ := cmd.Flags().GetString("image"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
			body.Base64Image = base64.StdEncoding.EncodeToString(data)
		}
		if path, _ := cmd.Flags().GetString("history"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			if err := json.Unmarshal(data, &body.History); err != nil {
				return fmt.Errorf("parsing history %s: %w", path, err)
			}
		}
		req, err := body.Validate()
		if err != nil {
			return err
		}
		req.ID = uuid.NewString()

		wf, err := newWorkflow(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		for chunk, err := range wf.Generate(ctx, req) {
			if err != nil {
				fmt.Fprintln(out)
				return err
			}
			if _, err := io.WriteString(out, chunk); err != nil {
				return err
			}
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().String("prompt", "", "Prompt to send (required)")
	generateCmd.Flags().String("framework", "react", "Target framework: html, react, vue or nextjs")
	generateCmd.Flags().String("image", "", "Path to a JPEG, PNG or GIF reference image")
	generateCmd.Flags().String("history", "", `Path to a JSON array of {"role","content"} turns`)
	_ = generateCmd.MarkFlagRequired("prompt")
}
