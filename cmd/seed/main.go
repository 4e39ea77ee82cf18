package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkellner/bookshop/app/models"
	"github.com/mkellner/bookshop/internal/pkg/database"
	"github.com/mkellner/bookshop/internal/pkg/env"
)

// Sample inventory for local development. One copy each, like the real shop.
var sampleBooks = []models.Book{
	{Title: "The Moonstone", Author: "Wilkie Collins", ISBN: "9780141439020", Description: "First edition of the classic detective novel, cloth binding with light shelf wear.", PublishedYear: 1868, PriceCents: 4500},
	{Title: "A Room of One's Own", Author: "Virginia Woolf", ISBN: "9780156787338", Description: "Early Hogarth Press printing, foxing to endpapers, otherwise a clean copy.", PublishedYear: 1929, PriceCents: 12000},
	{Title: "The Thirty-Nine Steps", Author: "John Buchan", ISBN: "9780141441177", Description: "Pocket edition with the original dust jacket, small tear to the spine head.", PublishedYear: 1915, PriceCents: 3800},
	{Title: "Brideshead Revisited", Author: "Evelyn Waugh", ISBN: "9780316926348", Description: "Book club edition in very good condition, previous owner's bookplate inside.", PublishedYear: 1945, PriceCents: 2750},
	{Title: "The Go-Between", Author: "L.P. Hartley", ISBN: "9781590171080", Description: "Second impression, tight binding, pages lightly tanned.", PublishedYear: 1953, PriceCents: 3200},
	{Title: "Cold Comfort Farm", Author: "Stella Gibbons", ISBN: "9780141441597", Description: "Penguin paperback first issue, creased spine but complete.", PublishedYear: 1932, PriceCents: 1500},
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash" {
		hashPassword()
		return
	}

	env.SetupEnvFile()
	database.SetupDatabase()
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.Book{}).Count(&count).Error; err != nil {
		log.Fatalf("Failed to count books: %v", err)
	}
	if count > 0 {
		log.Printf("Books table already has %d rows, skipping seed", count)
		return
	}

	log.Println("Loading sample books...")
	for i := range sampleBooks {
		book := sampleBooks[i]
		book.IsAvailable = true
		if err := db.Create(&book).Error; err != nil {
			log.Fatalf("Failed to create sample book %q: %v", book.Title, err)
		}
	}
	log.Printf("Sample books loaded: %d", len(sampleBooks))
	log.Println("Set ADMIN_USERNAME and ADMIN_PASSWORD_HASH in .env to enable the admin backend")
	log.Println("Generate a hash with: go run cmd/seed/main.go hash <password>")
}

// hashPassword prints a bcrypt hash for ADMIN_PASSWORD_HASH.
func hashPassword() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/seed/main.go hash <password>")
		os.Exit(1)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[2]), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(string(hash))
}
