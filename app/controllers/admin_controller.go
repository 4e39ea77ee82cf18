package controllers

import (
	"io"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkellner/bookshop/app/models"
	"github.com/mkellner/bookshop/app/repository"
	"github.com/mkellner/bookshop/internal/pkg/covers"
	"github.com/mkellner/bookshop/internal/pkg/env"
	"github.com/mkellner/bookshop/internal/pkg/middleware"
	"github.com/mkellner/bookshop/internal/pkg/session"
)

const coverUploadDir = "./public/uploads/covers"

// AdminController handles the management backend: login, dashboard, book
// CRUD, and order fulfillment.
type AdminController struct {
	bookRepo  repository.BookRepository
	orderRepo repository.OrderRepository
}

var adminController *AdminController

// InitializeAdminController wires the admin controller with its repositories.
func InitializeAdminController() {
	factory := repository.GetGlobalFactory()
	adminController = &AdminController{
		bookRepo:  factory.GetBookRepository(),
		orderRepo: factory.GetOrderRepository(),
	}
}

// handleError redirects back to the dashboard with a flash message.
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	fm := fiber.Map{
		"type":    "error",
		"message": message + ": " + err.Error(),
	}
	return flash.WithError(c, fm).Redirect("/admin")
}

// HandleAdminLoginPage renders the login form.
func HandleAdminLoginPage(c *fiber.Ctx) error {
	return c.Render("admin/login", fiber.Map{
		"Flash": flash.Get(c),
	})
}

// HandleAdminLogin checks the submitted credentials against ADMIN_USERNAME
// and the bcrypt hash in ADMIN_PASSWORD_HASH.
func HandleAdminLogin(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	wantUser := env.GetEnv("ADMIN_USERNAME", "admin")
	wantHash := env.GetEnv("ADMIN_PASSWORD_HASH", "")

	authorized := wantHash != "" && username == wantUser &&
		bcrypt.CompareHashAndPassword([]byte(wantHash), []byte(password)) == nil
	if !authorized {
		log.Printf("Failed admin login attempt for user %q", username)
		fm := fiber.Map{"type": "error", "message": "Invalid username or password."}
		return flash.WithError(c, fm).Redirect("/admin/login")
	}

	if err := session.SetSessionValue(c, middleware.SessionKeyAdmin, "true"); err != nil {
		log.Printf("Failed to persist admin session: %v", err)
		fm := fiber.Map{"type": "error", "message": "Login failed, please try again."}
		return flash.WithError(c, fm).Redirect("/admin/login")
	}

	return c.Redirect("/admin", fiber.StatusSeeOther)
}

// HandleAdminLogout drops the session.
func HandleAdminLogout(c *fiber.Ctx) error {
	if err := session.DestroySession(c); err != nil {
		log.Printf("Failed to destroy admin session: %v", err)
	}
	return c.Redirect("/admin/login", fiber.StatusSeeOther)
}

// HandleAdminDashboard shows stock and order counts plus unshipped orders.
func HandleAdminDashboard(c *fiber.Ctx) error {
	ac := adminController

	bookCount, err := ac.bookRepo.Count()
	if err != nil {
		return ac.handleError(c, "Failed to load dashboard", err)
	}
	orderCount, err := ac.orderRepo.Count()
	if err != nil {
		return ac.handleError(c, "Failed to load dashboard", err)
	}
	unfulfilled, err := ac.orderRepo.GetUnfulfilled()
	if err != nil {
		return ac.handleError(c, "Failed to load dashboard", err)
	}

	return c.Render("admin/dashboard", fiber.Map{
		"BookCount":         bookCount,
		"OrderCount":        orderCount,
		"UnfulfilledOrders": unfulfilled,
		"Flash":             flash.Get(c),
	})
}

// HandleAdminBooks lists all books, sold ones included.
func HandleAdminBooks(c *fiber.Ctx) error {
	ac := adminController

	query := c.Query("q")
	var (
		books []models.Book
		err   error
	)
	if query != "" {
		books, err = ac.bookRepo.Search(query)
	} else {
		books, err = ac.bookRepo.GetAll()
	}
	if err != nil {
		return ac.handleError(c, "Failed to load books", err)
	}

	return c.Render("admin/books", fiber.Map{
		"Books": books,
		"Query": query,
		"Flash": flash.Get(c),
	})
}

// HandleAdminBookCreate renders the new-book form.
func HandleAdminBookCreate(c *fiber.Ctx) error {
	return c.Render("admin/book_form", fiber.Map{
		"Book":  &models.Book{IsAvailable: true},
		"Flash": flash.Get(c),
	})
}

// HandleAdminBookStore persists a new book from the submitted form.
func HandleAdminBookStore(c *fiber.Ctx) error {
	ac := adminController

	book, err := bookFromForm(c, &models.Book{})
	if err != nil {
		fm := fiber.Map{"type": "error", "message": err.Error()}
		return flash.WithError(c, fm).Redirect("/admin/books/create")
	}

	if path, err := storeUploadedCover(c); err != nil {
		fm := fiber.Map{"type": "error", "message": "Cover upload failed: " + err.Error()}
		return flash.WithError(c, fm).Redirect("/admin/books/create")
	} else if path != "" {
		book.CoverImagePath = path
	}

	if err := ac.bookRepo.Create(book); err != nil {
		return ac.handleError(c, "Failed to create book", err)
	}

	fm := fiber.Map{"type": "success", "message": "Book created."}
	return flash.WithSuccess(c, fm).Redirect("/admin/books")
}

// HandleAdminBookEdit renders the edit form for one book.
func HandleAdminBookEdit(c *fiber.Ctx) error {
	ac := adminController

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		fm := fiber.Map{"type": "error", "message": "Book not found."}
		return flash.WithError(c, fm).Redirect("/admin/books")
	}
	book, err := ac.bookRepo.GetByID(uint(id))
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Book not found."}
		return flash.WithError(c, fm).Redirect("/admin/books")
	}

	return c.Render("admin/book_form", fiber.Map{
		"Book":  book,
		"Flash": flash.Get(c),
	})
}

// HandleAdminBookUpdate applies the submitted form to an existing book.
func HandleAdminBookUpdate(c *fiber.Ctx) error {
	ac := adminController

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		fm := fiber.Map{"type": "error", "message": "Book not found."}
		return flash.WithError(c, fm).Redirect("/admin/books")
	}
	book, err := ac.bookRepo.GetByID(uint(id))
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Book not found."}
		return flash.WithError(c, fm).Redirect("/admin/books")
	}

	if _, err := bookFromForm(c, book); err != nil {
		fm := fiber.Map{"type": "error", "message": err.Error()}
		return flash.WithError(c, fm).Redirect("/admin/books/edit/" + strconv.Itoa(id))
	}
	book.IsAvailable = c.FormValue("is_available") == "on"

	if path, err := storeUploadedCover(c); err != nil {
		fm := fiber.Map{"type": "error", "message": "Cover upload failed: " + err.Error()}
		return flash.WithError(c, fm).Redirect("/admin/books/edit/" + strconv.Itoa(id))
	} else if path != "" {
		book.CoverImagePath = path
	}

	if err := ac.bookRepo.Update(book); err != nil {
		return ac.handleError(c, "Failed to update book", err)
	}

	fm := fiber.Map{"type": "success", "message": "Book updated."}
	return flash.WithSuccess(c, fm).Redirect("/admin/books")
}

// HandleAdminBookDelete removes a book. Orders keep their snapshot, so
// history survives the delete.
func HandleAdminBookDelete(c *fiber.Ctx) error {
	ac := adminController

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		fm := fiber.Map{"type": "error", "message": "Book not found."}
		return flash.WithError(c, fm).Redirect("/admin/books")
	}
	if err := ac.bookRepo.Delete(uint(id)); err != nil {
		return ac.handleError(c, "Failed to delete book", err)
	}

	fm := fiber.Map{"type": "success", "message": "Book deleted."}
	return flash.WithSuccess(c, fm).Redirect("/admin/books")
}

// HandleAdminOrders lists orders, newest first.
func HandleAdminOrders(c *fiber.Ctx) error {
	ac := adminController

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	const perPage = 50

	ordersList, err := ac.orderRepo.GetAll((page-1)*perPage, perPage)
	if err != nil {
		return ac.handleError(c, "Failed to load orders", err)
	}
	total, err := ac.orderRepo.Count()
	if err != nil {
		return ac.handleError(c, "Failed to load orders", err)
	}

	return c.Render("admin/orders", fiber.Map{
		"Orders": ordersList,
		"Page":   page,
		"Total":  total,
		"Flash":  flash.Get(c),
	})
}

// HandleAdminOrderFulfill marks an order as shipped. FulfilledAt is stamped
// once by the model hook and never moves on repeat submissions.
func HandleAdminOrderFulfill(c *fiber.Ctx) error {
	ac := adminController

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		fm := fiber.Map{"type": "error", "message": "Order not found."}
		return flash.WithError(c, fm).Redirect("/admin/orders")
	}
	order, err := ac.orderRepo.GetByID(uint(id))
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "Order not found."}
		return flash.WithError(c, fm).Redirect("/admin/orders")
	}

	order.Fulfilled = true
	if err := ac.orderRepo.Update(order); err != nil {
		return ac.handleError(c, "Failed to update order", err)
	}

	fm := fiber.Map{"type": "success", "message": "Order marked as fulfilled."}
	return flash.WithSuccess(c, fm).Redirect("/admin/orders")
}

// bookFromForm fills book from the submitted form fields and validates it.
func bookFromForm(c *fiber.Ctx, book *models.Book) (*models.Book, error) {
	book.Title = c.FormValue("title")
	book.Author = c.FormValue("author")
	book.ISBN = c.FormValue("isbn")
	book.Description = c.FormValue("description")

	if year := c.FormValue("published_year"); year != "" {
		v, err := strconv.Atoi(year)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Published year must be a number.")
		}
		book.PublishedYear = v
	}

	price := c.FormValue("price")
	if price != "" {
		cents, err := models.ParsePounds(price)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Price must look like 12.50.")
		}
		book.PriceCents = cents
	}

	if err := book.Validate(); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Title and author are required.")
	}
	return book, nil
}

// storeUploadedCover processes an optional "cover" form file and returns the
// stored path, or "" when no file was attached.
func storeUploadedCover(c *fiber.Ctx) (string, error) {
	fileHeader, err := c.FormFile("cover")
	if err != nil {
		// No file attached is fine.
		return "", nil
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	processed, err := covers.ProcessCover(data)
	if err != nil {
		return "", err
	}
	return covers.SaveCover(processed, coverUploadDir)
}
