// Seeds a local database with a team, an API key and demo credentials so
// the gateway can be exercised end to end without manual setup.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/gateway/internal/store/model"
	"github.com/modelgate/gateway/internal/store/sqlite"
)

func main() {
	key := os.Getenv("DATABASE_ENCRYPTION_KEY")
	if key == "" {
		key = "0123456789abcdef0123456789abcdef" // local development only
	}

	repo, err := sqlite.NewSQLiteStorage("gateway.db", []byte(key))
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	ctx := context.Background()

	teamID := uuid.New().String()
	team := &model.Team{
		ID:        teamID,
		Name:      "Demo Team",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := repo.Teams().Create(ctx, team); err != nil {
		log.Printf("Team might already exist: %v", err)
	} else {
		fmt.Printf("Created Team: %s\n", teamID)
	}

	rawKey := "mg-test-1234567890"
	hash := sha256.Sum256([]byte(rawKey))
	hashedHex := hex.EncodeToString(hash[:])

	apiKey := &model.APIKey{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		Name:      "Demo Key",
		KeyHash:   hashedHex,
		KeyPrefix: "mg-test-",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := repo.APIKeys().Create(ctx, apiKey); err != nil {
		log.Fatal(err)
	}

	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		if err := repo.Credentials().Store(ctx, teamID, "openai", map[string]string{
			"api_key": openaiKey,
		}); err != nil {
			log.Fatal(err)
		}
		fmt.Println("Stored OpenAI credentials for demo team")
	}

	routes := []model.ModelRoute{
		{ID: "gpt-4o", Alias: "gpt-4o", ProviderID: "openai", ProviderModelID: "gpt-4o", ContextWindow: 128000, IsEnabled: true},
		{ID: "fast", Alias: "fast", ProviderID: "groq", ProviderModelID: "llama-3.1-8b-instant", ContextWindow: 131072, IsEnabled: true},
	}
	if err := repo.Models().Sync(ctx, routes); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nSuccessfully seeded database!\n")
	fmt.Printf("API Key: %s\n", rawKey)
	fmt.Printf("Use this key in your Authorization header: Bearer %s\n", rawKey)
}
