// Command seed fills a development database with accounts, profiles and conversations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/ToolConnectBack/internal/config"
	"github.com/saeid-a/ToolConnectBack/internal/database"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
	"github.com/saeid-a/ToolConnectBack/internal/services"
	"github.com/saeid-a/ToolConnectBack/pkg/utils"
)

const seedPassword = "password123"

var categories = []string{"power_tools", "hand_tools", "garden", "construction", "cleaning", "vehicles", "events"}

type seeded struct {
	userID    int64
	profileID int64
}

func main() {
	numClients := flag.Int("clients", 20, "Number of client accounts to create")
	numProviders := flag.Int("providers", 10, "Number of provider accounts to create")
	numMessages := flag.Int("messages", 6, "Messages per seeded conversation")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	gofakeit.Seed(time.Now().UnixNano())

	hash, err := utils.HashPassword(seedPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	providers := make([]seeded, 0, *numProviders)
	for i := 0; i < *numProviders; i++ {
		p, err := seedProvider(ctx, db, hash)
		if err != nil {
			log.Fatalf("Provider seeding failed: %v", err)
		}
		providers = append(providers, p)
	}

	clients := make([]seeded, 0, *numClients)
	for i := 0; i < *numClients; i++ {
		c, err := seedClient(ctx, db, hash)
		if err != nil {
			log.Fatalf("Client seeding failed: %v", err)
		}
		clients = append(clients, c)
	}

	conversations, err := seedConversations(ctx, db, clients, providers, *numMessages)
	if err != nil {
		log.Fatalf("Conversation seeding failed: %v", err)
	}

	log.Printf("Seeded %d clients, %d providers, %d conversations", len(clients), len(providers), conversations)
	log.Printf("All seeded accounts use the password %q", seedPassword)
}

func seedClient(ctx context.Context, db *pgxpool.Pool, hash string) (seeded, error) {
	user := &models.User{Email: uniqueEmail(), PasswordHash: hash, AccountType: models.AccountTypeClient}
	if err := repository.NewUserRepository(db).CreateUser(ctx, user); err != nil {
		return seeded{}, err
	}
	profile, err := repository.NewClientProfileRepository(db).CompleteOnboarding(ctx, user.ID, repository.ClientOnboardingInput{
		Name:              gofakeit.FirstName(),
		Surname:           gofakeit.LastName(),
		ShowContact:       gofakeit.Bool(),
		PreferredCategory: gofakeit.RandomString(categories),
	})
	if err != nil {
		return seeded{}, err
	}
	return seeded{userID: user.ID, profileID: profile.ID}, nil
}

func seedProvider(ctx context.Context, db *pgxpool.Pool, hash string) (seeded, error) {
	user := &models.User{Email: uniqueEmail(), PasswordHash: hash, AccountType: models.AccountTypeProvider}
	if err := repository.NewUserRepository(db).CreateUser(ctx, user); err != nil {
		return seeded{}, err
	}
	profile, err := repository.NewProviderProfileRepository(db).CompleteOnboarding(ctx, user.ID, repository.ProviderOnboardingInput{
		Name:        gofakeit.FirstName(),
		Surname:     gofakeit.LastName(),
		ShowContact: gofakeit.Bool(),
		Category:    gofakeit.RandomString(categories),
		Services:    []string{gofakeit.HipsterWord() + " rental", gofakeit.HipsterWord() + " repair"},
		Bio:         gofakeit.Sentence(12),
	})
	if err != nil {
		return seeded{}, err
	}
	return seeded{userID: user.ID, profileID: profile.ID}, nil
}

// seedConversations pairs every client with a couple of providers and alternates senders.
func seedConversations(ctx context.Context, db *pgxpool.Pool, clients, providers []seeded, perConversation int) (int, error) {
	if len(providers) == 0 {
		return 0, nil
	}

	directory := services.NewConversationDirectory(repository.NewConversationRepository(db))
	messages := services.NewMessageLog(repository.NewMessageRepository(db), nil)

	created := 0
	for i, client := range clients {
		for j := 0; j < 2 && j < len(providers); j++ {
			provider := providers[(i+j)%len(providers)]
			conversation, isNew, err := directory.FindOrCreate(ctx, client.profileID, provider.profileID)
			if err != nil {
				return created, fmt.Errorf("conversation %d/%d: %w", client.profileID, provider.profileID, err)
			}
			if isNew {
				created++
			}

			for k := 0; k < perConversation; k++ {
				sender := client.userID
				if k%2 == 1 {
					sender = provider.userID
				}
				if _, err := messages.Append(ctx, services.AppendInput{
					ConversationID: conversation.ID,
					SenderID:       sender,
					Text:           gofakeit.Sentence(gofakeit.Number(3, 14)),
				}); err != nil {
					return created, err
				}
			}
		}
	}
	return created, nil
}

func uniqueEmail() string {
	return fmt.Sprintf("%d.%s", gofakeit.Number(1000, 9999), gofakeit.Email())
}
