package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"crypto-calls-dashboard/internal/auth"
)

func main() {
	fmt.Println("========================================")
	fmt.Println(" Dashboard Admin Tool")
	fmt.Println("========================================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Hash an admin password")
		fmt.Println("  2. Verify a password against a hash")
		fmt.Println("  3. Generate a signal webhook token")
		fmt.Println("  4. Generate a JWT secret")
		fmt.Println("  5. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch input {
		case "1":
			hashPassword(reader)
		case "2":
			verifyPassword(reader)
		case "3":
			generateToken("Signal webhook token", "SIGNAL_WEBHOOK_TOKEN", 24)
		case "4":
			generateToken("JWT secret", "AUTH_JWT_SECRET", 32)
		case "5":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func hashPassword(reader *bufio.Reader) {
	fmt.Println("\n--- Hash Admin Password ---")
	fmt.Print("Enter password: ")

	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)
	if len(password) < 8 {
		fmt.Println("Password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		return
	}

	fmt.Println("\n========================================")
	fmt.Printf("  Bcrypt hash: %s\n", hash)
	fmt.Println("========================================")
	fmt.Println("\nSet it via AUTH_ADMIN_PASSWORD_HASH or store it in Vault as admin_password_hash.")
}

func verifyPassword(reader *bufio.Reader) {
	fmt.Println("\n--- Verify Password ---")
	fmt.Print("Enter bcrypt hash: ")
	hash, _ := reader.ReadString('\n')
	hash = strings.TrimSpace(hash)

	fmt.Print("Enter password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	fmt.Println("\n========================================")
	if auth.VerifyPassword(hash, password) {
		fmt.Println("  Status: MATCH")
	} else {
		fmt.Println("  Status: NO MATCH")
	}
	fmt.Println("========================================")
}

func generateToken(label, envVar string, bytes int) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		fmt.Printf("Failed to generate token: %v\n", err)
		return
	}
	token := hex.EncodeToString(buf)

	fmt.Println("\n========================================")
	fmt.Printf("  %s:\n  %s\n", label, token)
	fmt.Println("========================================")
	fmt.Printf("\nSet it via %s.\n", envVar)
}
