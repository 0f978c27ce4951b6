package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"muze/internal/i18n"
)

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# Muze Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SECTION>_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<section>-<setting>\n")
	content.WriteString("#\n\n")

	writeSection(&content, cmd, "Spotify", []string{
		"spotify-client-id",
		"spotify-redirect-url",
		"spotify-playlist-id",
		"spotify-device-name",
		"spotify-api-base-url",
		"spotify-token",
	})
	writeSection(&content, cmd, "Recommendation Server", []string{
		"channel-url",
		"channel-write-timeout-secs",
		"channel-reconnect-delay-secs",
	})
	writeSection(&content, cmd, "Application", []string{
		"language",
		"poll-interval-ms",
		"device-timeout-secs",
		"flood-limit-per-minute",
		"saved-tracks-capacity",
	})
	writeSection(&content, cmd, "HTTP Server", []string{
		"server-host",
		"server-port",
	})
	writeSection(&content, cmd, "Logging", []string{
		"log-level",
		"log-format",
		"log-file",
	})

	fmt.Fprintf(&content, "# Supported languages: %s\n", strings.Join(i18n.GetSupportedLanguages(), ", "))
	content.WriteString("# Register the redirect URL (default http://127.0.0.1:8080/callback) in the Spotify dashboard.\n")

	return content.String()
}

func writeSection(content *strings.Builder, cmd *cobra.Command, title string, flags []string) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", title)
	content.WriteString("# -----------------------------------------------------------------------------\n")

	for _, name := range flags {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(content, "# %s (--%s)\n", f.Usage, name)
		fmt.Fprintf(content, "%s=%s\n", flagToEnvVar(name), f.DefValue)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
