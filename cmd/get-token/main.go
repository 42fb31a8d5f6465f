package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/pubsub",
}

// One-off OAuth bootstrap: exchanges an authorization code for a token
// file the scheduler can use.
func main() {
	clientSecretFile := os.Getenv("CLIENT_SECRET_FILE")
	if clientSecretFile == "" {
		clientSecretFile = "client_secret.json"
	}
	tokenFile := os.Getenv("TOKEN_FILE")
	if tokenFile == "" {
		tokenFile = "token.json"
	}

	secret, err := os.ReadFile(clientSecretFile)
	if err != nil {
		log.Fatalf("Unable to read client secret file %s: %v", clientSecretFile, err)
	}

	config, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		log.Fatalf("Unable to parse client secret file: %v", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser: %v\n", authURL)

	var authCode string
	fmt.Print("\nEnter the authorization code: ")
	fmt.Scan(&authCode)

	token, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		log.Fatalf("Unable to retrieve token from web: %v", err)
	}

	f, err := os.Create(tokenFile)
	if err != nil {
		log.Fatalf("Unable to create token file: %v", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		log.Fatalf("Unable to write token file: %v", err)
	}

	fmt.Printf("\nToken saved to %s\n", tokenFile)
}
