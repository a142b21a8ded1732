// Package main provides a tool to seed the database with test reading data.
//
// It creates a small catalog of books and categories, a handful of
// activated test users, and two weeks of finished reading sessions so
// the stats aggregation and book pages have something to show.
//
// Usage:
//
//	DATA_PATH=~/PageTurn/data go run ./cmd/seed
//	DATA_PATH=~/PageTurn/data go run ./cmd/seed --with-comments
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/auth"
	"github.com/pageturnapp/pageturn-server/internal/domain"
	"github.com/pageturnapp/pageturn-server/internal/id"
	"github.com/pageturnapp/pageturn-server/internal/store/sqlite"
)

var withComments = flag.Bool("with-comments", false, "Also create comment threads on seeded books")

var testUserNames = []struct {
	name  string
	email string
}{
	{"Alex Rivera", "alex@example.com"},
	{"Jordan Chen", "jordan@example.com"},
	{"Sam Taylor", "sam@example.com"},
	{"Casey Morgan", "casey@example.com"},
}

var seedCategories = []string{"Fiction", "Science Fiction", "History", "Philosophy"}

var seedBooks = []struct {
	title      string
	author     string
	published  string
	short      string
	categories []string
}{
	{"The Glass Orchard", "M. Ellison", "2019", "A family saga set in a dying orchard town.", []string{"Fiction"}},
	{"Signals from Tau Ceti", "R. Okafor", "2021", "First contact told through intercepted transmissions.", []string{"Science Fiction"}},
	{"The Long Peace", "H. Vidal", "2015", "Europe between the wars, year by year.", []string{"History"}},
	{"On Slow Thinking", "A. Marchetti", "2018", "Essays on attention in a distracted age.", []string{"Philosophy", "Fiction"}},
	{"Ironclad Harvest", "D. Petrov", "2022", "Automated farms and the people left tending them.", []string{"Science Fiction", "History"}},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/PageTurn/data")
	}

	dbPath := filepath.Join(dataPath, "pageturn.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := sqlite.Open(dbPath, slog.Default())
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	categories := createCategories(ctx, s)
	books := createBooks(ctx, s, categories)
	users := createTestUsers(ctx, s)

	if len(books) == 0 || len(users) == 0 {
		log.Fatal("Nothing to seed sessions against")
	}

	for _, user := range users {
		created := seedReadingSessions(ctx, s, rng, user, books)
		fmt.Printf("  Created %d reading sessions for %s\n", created, user.Email)
	}

	if *withComments {
		seedComments(ctx, s, rng, users, books)
	}

	fmt.Println("\nSeeding complete!")
}

func createCategories(ctx context.Context, s *sqlite.Store) map[string]domain.Category {
	byName := make(map[string]domain.Category)

	existing, err := s.ListCategories(ctx)
	if err != nil {
		log.Fatalf("Failed to list categories: %v", err)
	}
	for _, c := range existing {
		byName[c.Name] = c
	}

	for _, name := range seedCategories {
		if _, ok := byName[name]; ok {
			continue
		}
		cat := &domain.Category{ID: id.MustGenerate("cat"), Name: name}
		if err := s.CreateCategory(ctx, cat); err != nil {
			log.Printf("Failed to create category %s: %v", name, err)
			continue
		}
		byName[name] = *cat
		fmt.Printf("  Created category: %s\n", name)
	}

	return byName
}

func createBooks(ctx context.Context, s *sqlite.Store, categories map[string]domain.Category) []*domain.Book {
	existing, err := s.ListBooks(ctx)
	if err != nil {
		log.Fatalf("Failed to list books: %v", err)
	}
	byTitle := make(map[string]*domain.Book)
	for _, b := range existing {
		byTitle[b.Title] = b
	}

	now := time.Now()
	var books []*domain.Book

	for _, seed := range seedBooks {
		if b, ok := byTitle[seed.title]; ok {
			books = append(books, b)
			continue
		}

		var cats []domain.Category
		for _, name := range seed.categories {
			if c, ok := categories[name]; ok {
				cats = append(cats, c)
			}
		}

		book := &domain.Book{
			ID:               id.MustGenerate("book"),
			Title:            seed.title,
			Author:           seed.author,
			Published:        seed.published,
			ShortDescription: seed.short,
			FullDescription:  seed.short + " A longer description for the detail page.",
			Text:             fmt.Sprintf("Chapter 1\n\nThe full text of %q goes here.", seed.title),
			Categories:       cats,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := s.CreateBook(ctx, book); err != nil {
			log.Printf("Failed to create book %s: %v", seed.title, err)
			continue
		}
		books = append(books, book)
		fmt.Printf("  Created book: %s\n", seed.title)
	}

	return books
}

func createTestUsers(ctx context.Context, s *sqlite.Store) []*domain.User {
	passwordHash, err := auth.HashPassword("testpass123")
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now()
	var users []*domain.User

	for _, seed := range testUserNames {
		if existing, _ := s.GetUserByEmail(ctx, seed.email); existing != nil {
			users = append(users, existing)
			fmt.Printf("  User %s already exists, skipping\n", seed.email)
			continue
		}

		user := &domain.User{
			ID:           id.MustGenerate("user"),
			Email:        seed.email,
			Name:         seed.name,
			PasswordHash: passwordHash,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.CreateUser(ctx, user, domain.NewProfile(user.ID, now)); err != nil {
			log.Printf("  Failed to create user %s: %v", seed.email, err)
			continue
		}
		users = append(users, user)
		fmt.Printf("  Created user: %s (%s)\n", seed.name, seed.email)
	}

	return users
}

// seedReadingSessions creates finished sessions over the past 14 days.
// Sessions always close before the next one starts so the one-open-session
// rule holds throughout.
func seedReadingSessions(ctx context.Context, s *sqlite.Store, rng *rand.Rand, user *domain.User, books []*domain.Book) int {
	now := time.Now()
	created := 0

	for day := 13; day >= 0; day-- {
		// 80% chance of reading on any given day
		if day > 1 && rng.Float32() > 0.8 {
			continue
		}

		sessionsPerDay := 1 + rng.Intn(3)
		for n := range sessionsPerDay {
			book := books[rng.Intn(len(books))]

			hour := 7 + n*5 + rng.Intn(3)
			startedAt := time.Date(
				now.Year(), now.Month(), now.Day()-day,
				hour, rng.Intn(60), 0, 0, time.Local,
			)
			duration := time.Duration(10+rng.Intn(50)) * time.Minute

			session := domain.NewReadingSession(id.MustGenerate("rs"), user.ID, book.ID, startedAt)
			if _, err := s.StartReadingSession(ctx, session); err != nil {
				log.Printf("Failed to start session: %v", err)
				continue
			}
			if err := s.CloseReadingSession(ctx, session.ID, startedAt.Add(duration)); err != nil {
				log.Printf("Failed to close session: %v", err)
				continue
			}
			created++
		}
	}

	return created
}

func seedComments(ctx context.Context, s *sqlite.Store, rng *rand.Rand, users []*domain.User, books []*domain.Book) {
	bodies := []string{
		"Could not put this one down.",
		"The middle chapters drag a bit but the ending lands.",
		"Anyone else read this twice?",
		"Great pick for a long weekend.",
	}

	now := time.Now()

	for _, book := range books {
		author := users[rng.Intn(len(users))]
		root := &domain.Comment{
			ID:        id.MustGenerate("cmt"),
			UserID:    author.ID,
			BookID:    book.ID,
			Body:      bodies[rng.Intn(len(bodies))],
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateComment(ctx, root); err != nil {
			log.Printf("Failed to create comment: %v", err)
			continue
		}

		replier := users[rng.Intn(len(users))]
		reply := &domain.Comment{
			ID:        id.MustGenerate("cmt"),
			UserID:    replier.ID,
			BookID:    book.ID,
			Body:      "Agreed!",
			ParentID:  &root.ID,
			CreatedAt: now.Add(time.Minute),
			UpdatedAt: now.Add(time.Minute),
		}
		if err := s.CreateComment(ctx, reply); err != nil {
			log.Printf("Failed to create reply: %v", err)
		}

		like := &domain.CommentLike{
			ID:        id.MustGenerate("like"),
			UserID:    replier.ID,
			CommentID: root.ID,
			CreatedAt: now,
		}
		if err := s.CreateCommentLike(ctx, like); err != nil {
			log.Printf("Failed to like comment: %v", err)
		}

		fmt.Printf("  Seeded comments on: %s\n", book.Title)
	}
}
