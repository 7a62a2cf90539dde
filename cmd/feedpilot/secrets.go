package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"feedpilot/pkg/config"
)

// passwordEnvVar lets headless deployments skip the interactive prompt.
const passwordEnvVar = "FEEDPILOT_PASSWORD"

// loadSecrets decrypts the secrets file when present. A missing file is fine:
// provider lookups fall back to environment variables.
func loadSecrets(dataDir string) (config.Secrets, error) {
	if !config.SecretsFileExists(dataDir) {
		return nil, nil
	}

	password := os.Getenv(passwordEnvVar)
	if password == "" {
		fmt.Print("Enter your feedpilot password: ")
		raw, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
		zero(raw)
	}

	secrets, err := config.DecryptSecretsFile(dataDir, password)
	if err != nil {
		return nil, err
	}
	return secrets, nil
}

// runSecretsSetup interactively collects API keys and writes the encrypted
// secrets file.
func runSecretsSetup(dataDir string) error {
	password, err := promptForPassword()
	if err != nil {
		return err
	}

	secrets := config.Secrets{}
	scanner := bufio.NewScanner(os.Stdin)
	for _, name := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY"} {
		fmt.Printf("Enter %s (optional, press Enter to skip): ", name)
		if !scanner.Scan() {
			break
		}
		if value := strings.TrimSpace(scanner.Text()); value != "" {
			secrets[name] = value
		}
	}

	fmt.Println()
	fmt.Println("🔐 Encrypting and saving credentials...")
	if err := config.EncryptSecretsFile(dataDir, password, secrets); err != nil {
		return fmt.Errorf("failed to encrypt secrets: %w", err)
	}

	fmt.Printf("✅ Credentials saved to %s/secrets.json.enc (file permissions: 0600)\n", dataDir)
	fmt.Printf("💡 Set %s to skip the password prompt on startup.\n", passwordEnvVar)
	return nil
}

// promptForPassword prompts for a password with confirmation.
func promptForPassword() (string, error) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Print("Enter a password for your feedpilot secrets: ")
		first, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Print("Confirm password: ")
		second, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		if !bytes.Equal(first, second) {
			zero(first)
			zero(second)
			if attempt < maxAttempts {
				fmt.Println("❌ Passwords do not match. Please try again.")
				continue
			}
			return "", fmt.Errorf("passwords do not match after %d attempts", maxAttempts)
		}

		password := string(first)
		zero(first)
		zero(second)
		return password, nil
	}
	return "", fmt.Errorf("failed to get matching passwords")
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
