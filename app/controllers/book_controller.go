package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/mkellner/bookshop/app/repository"
)

// BookController serves the public storefront.
type BookController struct {
	bookRepo repository.BookRepository
}

var bookController *BookController

// InitializeBookController wires the storefront controller with its repository.
func InitializeBookController() {
	factory := repository.GetGlobalFactory()
	bookController = &BookController{
		bookRepo: factory.GetBookRepository(),
	}
}

// HandleBookList renders the storefront with every purchasable book.
func HandleBookList(c *fiber.Ctx) error {
	books, err := bookController.bookRepo.GetAvailable()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).Render("error", fiber.Map{
			"Message": "Could not load the book list. Please try again later.",
		})
	}

	return c.Render("books/index", fiber.Map{
		"Books": books,
		"Flash": flash.Get(c),
	})
}

// HandleBookDetail renders one book's listing page.
func HandleBookDetail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"Message": "This book does not exist.",
		})
	}

	book, err := bookController.bookRepo.GetByID(uint(id))
	if err != nil || !book.IsAvailable {
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"Message": "This book is no longer available.",
		})
	}

	return c.Render("books/detail", fiber.Map{
		"Book":  book,
		"Flash": flash.Get(c),
	})
}
