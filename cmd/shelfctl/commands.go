package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Log in and store the session locally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var user domain.User
			if _, err := c.Call("login", map[string]any{
				"username": args[0],
				"password": args[1],
			}, &user); err != nil {
				return err
			}
			if err := saveSession(sessionPath, &session{
				UserID:   user.ID,
				Username: user.Username,
				Name:     user.Name,
				Role:     user.Role,
			}); err != nil {
				return err
			}
			fmt.Printf("已登录: %s (%s)\n", user.Name, user.Role.Label())
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clearSession(sessionPath); err != nil {
				return err
			}
			fmt.Println("已退出登录")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var email, phone string
	var age int
	cmd := &cobra.Command{
		Use:   "register <username> <password> <name>",
		Short: "Register a new reader account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			data := map[string]any{
				"username": args[0],
				"password": args[1],
				"name":     args[2],
				"email":    email,
				"phone":    phone,
			}
			if cmd.Flags().Changed("age") {
				data["age"] = age
			}
			var user domain.User
			resp, err := c.Call("register", data, &user)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%s)\n", resp.Message, user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().IntVar(&age, "age", 0, "age")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search the catalog by title, author or ISBN",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			keyword := ""
			if len(args) > 0 {
				keyword = args[0]
			}
			var books []*domain.Book
			if _, err := c.Call("search_books", map[string]any{
				"keyword":  keyword,
				"category": category,
			}, &books); err != nil {
				return err
			}
			printBooks(books)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by exact category")
	return cmd
}

func newBorrowCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "borrow <book-id>",
		Short: "Borrow a book as the logged-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var loan domain.BorrowRecord
			resp, err := c.Call("borrow_book", map[string]any{
				"user_id": sess.UserID,
				"book_id": args[0],
				"days":    days,
			}, &loan)
			if err != nil {
				return err
			}
			fmt.Printf("%s (记录 %s, 应还日期 %s)\n",
				resp.Message, loan.ID, loan.DueDate.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "loan length in days (0 uses the server default)")
	return cmd
}

func newReturnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return <record-id>",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Call("return_book", map[string]any{
				"user_id":   sess.UserID,
				"record_id": args[0],
			}, nil)
			if err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func newLoansCmd() *cobra.Command {
	var all bool
	var status string
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List borrow records (own by default, --all for every user)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var loans []*domain.LoanView
			if all {
				_, err = c.Call("get_all_borrows", map[string]any{
					"operator_id": sess.UserID,
					"status":      status,
				}, &loans)
			} else {
				_, err = c.Call("get_my_borrows", map[string]any{
					"user_id": sess.UserID,
					"status":  status,
				}, &loans)
			}
			if err != nil {
				return err
			}
			printLoans(loans, all)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list all users' records (admin)")
	cmd.Flags().StringVar(&status, "status", "", "filter by stored status (borrowed, returned)")
	return cmd
}

func newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage the catalog",
	}
	cmd.AddCommand(
		newBooksGetCmd(),
		newBooksAddCmd(),
		newBooksUpdateCmd(),
		newBooksDeleteCmd(),
		newBooksCategoriesCmd(),
	)
	return cmd
}

func newBooksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <book-id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var book domain.Book
			if _, err := c.Call("get_book", map[string]any{"book_id": args[0]}, &book); err != nil {
				return err
			}
			printBooks([]*domain.Book{&book})
			return nil
		},
	}
}

func newBooksAddCmd() *cobra.Command {
	var title, author, isbn, category, publisher, published string
	var copies int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var book domain.Book
			resp, err := c.Call("add_book", map[string]any{
				"operator_id":  sess.UserID,
				"title":        title,
				"author":       author,
				"isbn":         isbn,
				"category":     category,
				"publisher":    publisher,
				"publish_date": published,
				"total_copies": copies,
			}, &book)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%s)\n", resp.Message, book.Title, book.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "author")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&category, "category", "", "category label")
	cmd.Flags().StringVar(&publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&published, "published", "", "publish date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&copies, "copies", 1, "total copies")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

func newBooksUpdateCmd() *cobra.Command {
	var title, author, isbn, category, publisher, published, status string
	var copies int
	cmd := &cobra.Command{
		Use:   "update <book-id>",
		Short: "Update book fields (admin); only changed flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			data := map[string]any{
				"operator_id": sess.UserID,
				"book_id":     args[0],
			}
			flagValues := map[string]any{
				"title":        title,
				"author":       author,
				"isbn":         isbn,
				"category":     category,
				"publisher":    publisher,
				"publish_date": published,
				"status":       status,
			}
			flagNames := map[string]string{
				"title": "title", "author": "author", "isbn": "isbn",
				"category": "category", "publisher": "publisher",
				"publish_date": "published", "status": "status",
			}
			for field, flagName := range flagNames {
				if cmd.Flags().Changed(flagName) {
					data[field] = flagValues[field]
				}
			}
			if cmd.Flags().Changed("copies") {
				data["total_copies"] = copies
			}

			var book domain.Book
			resp, err := c.Call("update_book", data, &book)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s 可借 %d/%d [%s]\n",
				resp.Message, book.Title, book.AvailableCopies, book.TotalCopies, book.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "author")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&category, "category", "", "category label")
	cmd.Flags().StringVar(&publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&published, "published", "", "publish date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "status (available/unavailable/maintenance)")
	cmd.Flags().IntVar(&copies, "copies", 0, "total copies")
	return cmd
}

func newBooksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Delete a book and its borrow history (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Call("delete_book", map[string]any{
				"operator_id": sess.UserID,
				"book_id":     args[0],
			}, nil)
			if err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func newBooksCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List distinct categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var categories []string
			if _, err := c.Call("get_categories", nil, &categories); err != nil {
				return err
			}
			fmt.Println(strings.Join(categories, "\n"))
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts (admin)",
	}
	cmd.AddCommand(newUsersListCmd(), newUsersAddCmd(), newUsersDeleteCmd())
	return cmd
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var users []*domain.User
			if _, err := c.Call("get_all_users", map[string]any{
				"operator_id": sess.UserID,
			}, &users); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\t用户名\t姓名\t角色\t邮箱")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Role.Label(), u.Email)
			}
			return w.Flush()
		},
	}
}

func newUsersAddCmd() *cobra.Command {
	var role, email, phone string
	var age int
	cmd := &cobra.Command{
		Use:   "add <username> <password> <name>",
		Short: "Create an account with an explicit role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			data := map[string]any{
				"operator_id": sess.UserID,
				"username":    args[0],
				"password":    args[1],
				"name":        args[2],
				"role":        role,
				"email":       email,
				"phone":       phone,
			}
			if cmd.Flags().Changed("age") {
				data["age"] = age
			}
			var user domain.User
			resp, err := c.Call("admin_add_user", data, &user)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%s)\n", resp.Message, user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "user", "role (admin/member/user)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().IntVar(&age, "age", 0, "age")
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete an account (blocked while books are outstanding)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Call("admin_delete_user", map[string]any{
				"operator_id": sess.UserID,
				"user_id":     args[0],
			}, nil)
			if err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show circulation statistics (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			var stats domain.BorrowStats
			if _, err := c.Call("get_statistics", map[string]any{
				"operator_id": sess.UserID,
			}, &stats); err != nil {
				return err
			}
			fmt.Printf("总借阅: %d\n当前借出: %d\n逾期: %d\n图书总数: %d\n可借图书: %d\n",
				stats.TotalBorrows, stats.CurrentBorrows, stats.Overdue,
				stats.TotalBooks, stats.AvailableBooks)
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	var count, batch int
	cmd := &cobra.Command{
		Use:   "import <query>",
		Short: "Import books from Open Library (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession(sessionPath)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.Call("import_books", map[string]any{
				"operator_id": sess.UserID,
				"query":       args[0],
				"count":       count,
				"batch_size":  batch,
			}, nil)
			if err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100, "number of titles to import")
	cmd.Flags().IntVar(&batch, "batch", 50, "search page size")
	return cmd
}

func printBooks(books []*domain.Book) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\t书名\t作者\t分类\t可借/总数\t状态")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			b.ID, b.Title, b.Author, b.Category, b.AvailableCopies, b.TotalCopies, b.Status)
	}
	w.Flush()
}

func printLoans(loans []*domain.LoanView, showUser bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if showUser {
		fmt.Fprintln(w, "记录ID\t书名\t借阅人\t借出日期\t应还日期\t状态")
	} else {
		fmt.Fprintln(w, "记录ID\t书名\t借出日期\t应还日期\t状态")
	}
	for _, l := range loans {
		status := string(l.Status)
		if l.Overdue {
			status = "逾期"
		}
		if showUser {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.BookTitle, l.UserName,
				l.BorrowDate.Format("2006-01-02"), l.DueDate.Format("2006-01-02"), status)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.BookTitle,
				l.BorrowDate.Format("2006-01-02"), l.DueDate.Format("2006-01-02"), status)
		}
	}
	w.Flush()
}
