// keygen generates the Ed25519 JWK the auth stub signs access tokens with (SIGNING_KEY_PATH).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/spf13/cobra"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/betforbes/authflow/internal/version"
)

// file naming convention - name.public.jwk and name.private.jwk
const (
	publicKeyFileNameFormat  = "%s.public.jwk"
	privateKeyFileNameFormat = "%s.private.jwk"
)

var (
	name      string
	outputDir string
	kid       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "keygen",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "Access token signing key generator for authstub",
	}

	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new Ed25519 key pair",
		Long:  "Generate an Ed25519 key pair in JWK format. Point SIGNING_KEY_PATH at the private file.",
		RunE:  runGenerate,
	}

	generateCmd.Flags().StringVarP(&name, "name", "n", "authstub", "File name prefix")
	generateCmd.Flags().StringVarP(&outputDir, "outputdir", "o", "", "Output directory for generated keys [required]")
	generateCmd.Flags().StringVarP(&kid, "kid", "k", "", "Key ID (default: auto-generated from thumbprint)")
	generateCmd.MarkFlagRequired("outputdir")

	rootCmd.AddCommand(generateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	privateKey, err := accesstoken.GenerateSigningKey(kid)
	if err != nil {
		return err
	}
	keyID, _ := privateKey.KeyID()

	publicKey, err := jwk.PublicKeyOf(privateKey)
	if err != nil {
		return fmt.Errorf("failed to derive public key: %w", err)
	}

	publicPath := filepath.Join(outputDir, fmt.Sprintf(publicKeyFileNameFormat, name))
	if err := accesstoken.SaveKey(publicKey, publicPath); err != nil {
		return err
	}
	fmt.Printf("✓ Public JWK:  %s (kid: %s)\n", publicPath, keyID)

	privatePath := filepath.Join(outputDir, fmt.Sprintf(privateKeyFileNameFormat, name))
	if err := accesstoken.SaveKey(privateKey, privatePath); err != nil {
		return err
	}
	fmt.Printf("✓ Private JWK: %s (kid: %s)\n", privatePath, keyID)

	return nil
}
