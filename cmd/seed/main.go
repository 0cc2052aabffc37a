// Package main provides a tool to seed the database with test library data.
//
// This creates users, books and borrow records so circulation, statistics
// and dashboard features have something realistic to chew on.
//
// Usage:
//
//	go run ./cmd/seed --db library.db
//	go run ./cmd/seed --db library.db --users 50 --books 80 --borrows 120
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/service"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/store/sqlite"
)

var (
	dbPath      = flag.String("db", "library.db", "Path to the SQLite database file")
	userCount   = flag.Int("users", 20, "Number of users to create")
	bookCount   = flag.Int("books", 30, "Number of books to create")
	borrowCount = flag.Int("borrows", 40, "Number of borrow records to create")
	randSeed    = flag.Int64("seed", 0, "Random seed (0 uses the current time)")
)

var surnames = []string{
	"张", "王", "李", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
	"梁", "宋", "郑", "谢", "韩", "唐", "冯", "于", "董", "萧",
}

var givenNames = []string{
	"伟", "芳", "娜", "秀英", "敏", "静", "丽", "强", "磊", "军",
	"洋", "勇", "艳", "杰", "娟", "涛", "明", "超", "秀兰", "霞",
	"平", "刚", "桂英", "建华", "文", "华", "建国", "红", "志强", "梅",
}

var bookTitles = []string{
	"Python编程从入门到实践", "Java核心技术", "数据结构与算法", "计算机网络", "操作系统概念",
	"数据库系统概论", "软件工程", "编译原理", "计算机组成原理", "算法导论",
	"深入理解计算机系统", "设计模式", "重构", "代码整洁之道", "人月神话",
	"三体", "百年孤独", "1984", "动物农场", "围城",
	"活着", "平凡的世界", "白夜行", "嫌疑人X的献身", "解忧杂货店",
	"红楼梦", "西游记", "水浒传", "三国演义", "史记",
	"时间简史", "人类简史", "未来简史", "枪炮、病菌与钢铁", "思考，快与慢",
	"经济学原理", "管理学", "市场营销", "财务管理", "战略管理",
}

var bookAuthors = []string{
	"鲁迅", "老舍", "巴金", "茅盾", "沈从文", "钱钟书", "张爱玲", "三毛",
	"史蒂芬·霍金", "尤瓦尔·赫拉利", "马尔克斯", "村上春树", "东野圭吾", "余华", "莫言", "路遥",
}

var publishers = []string{
	"人民文学出版社", "商务印书馆", "中华书局", "清华大学出版社", "北京大学出版社",
	"机械工业出版社", "电子工业出版社", "人民邮电出版社", "高等教育出版社", "科学出版社",
	"上海译文出版社", "译林出版社", "中信出版社", "三联书店", "作家出版社",
}

var categories = []string{
	"教育类", "科普类", "文学类", "历史类", "艺术类",
	"计算机", "哲学", "经济", "管理", "心理学",
}

const seedPassword = "123456"

// Low cost keeps bulk seeding fast; this data is throwaway.
const seedBcryptCost = 4

func main() {
	flag.Parse()

	seed := *randSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := sqlite.Open(*dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	auth := service.NewAuthService(st, seedBcryptCost, logger)
	if err := auth.EnsureDefaultAdmin(ctx); err != nil {
		log.Fatalf("Failed to ensure default admin: %v", err)
	}

	users := seedUsers(ctx, rng, st, logger)
	books := seedBooks(ctx, rng, st, logger)
	seedBorrows(ctx, rng, st, users, books)

	fmt.Println("完成")
}

func chineseName(rng *rand.Rand) string {
	name := surnames[rng.Intn(len(surnames))]
	for i := 0; i < 1+rng.Intn(2); i++ {
		name += givenNames[rng.Intn(len(givenNames))]
	}
	return name
}

func seedUsers(ctx context.Context, rng *rand.Rand, st store.Store, logger *slog.Logger) []*domain.User {
	fmt.Printf("正在生成 %d 个用户...\n", *userCount)
	svc := service.NewUserService(st, seedBcryptCost, logger)

	roles := []domain.Role{domain.RoleUser, domain.RoleMember, domain.RoleUser, domain.RoleMember, domain.RoleUser}
	var created []*domain.User
	for i := 0; i < *userCount; i++ {
		name := chineseName(rng)
		age := 16 + rng.Intn(50)
		req := service.AdminCreateUserRequest{
			Username: fmt.Sprintf("reader%03d", i+1),
			Password: seedPassword,
			Name:     name,
			Email:    fmt.Sprintf("reader%d@example.com", i+1),
			Phone:    fmt.Sprintf("1%d%09d", 3+rng.Intn(7), rng.Intn(1_000_000_000)),
			Age:      &age,
			Role:     roles[rng.Intn(len(roles))],
		}
		user, err := svc.AdminCreateUser(ctx, req)
		if err != nil {
			fmt.Printf("  ✗ 创建用户失败 %s: %v\n", req.Username, err)
			continue
		}
		created = append(created, user)
		fmt.Printf("  ✓ 创建用户: %s (%s) - %s\n", user.Username, user.Name, user.Role)
	}
	fmt.Printf("成功生成 %d 个用户\n\n", len(created))
	return created
}

func seedBooks(ctx context.Context, rng *rand.Rand, st store.Store, logger *slog.Logger) []*domain.Book {
	fmt.Printf("正在生成 %d 本图书...\n", *bookCount)
	svc := service.NewCatalogService(st, logger)

	var created []*domain.Book
	for i := 0; i < *bookCount; i++ {
		req := service.AddBookRequest{
			Title:       bookTitles[rng.Intn(len(bookTitles))],
			Author:      bookAuthors[rng.Intn(len(bookAuthors))],
			ISBN:        fmt.Sprintf("978-7-%03d-%05d-%d", 100+rng.Intn(900), 10000+rng.Intn(90000), rng.Intn(10)),
			Category:    categories[rng.Intn(len(categories))],
			Publisher:   publishers[rng.Intn(len(publishers))],
			PublishDate: randomPublishDate(rng),
			TotalCopies: 1 + rng.Intn(5),
		}
		book, err := svc.AddBook(ctx, req)
		if err != nil {
			fmt.Printf("  ✗ 创建图书失败 %s: %v\n", req.Title, err)
			continue
		}
		created = append(created, book)
		fmt.Printf("  ✓ 创建图书: %s - %s (%d本)\n", book.Title, book.Author, book.TotalCopies)
	}
	fmt.Printf("成功生成 %d 本图书\n\n", len(created))
	return created
}

func randomPublishDate(rng *rand.Rand) string {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)
	return start.AddDate(0, 0, rng.Intn(days)).Format("2006-01-02")
}

// seedBorrows writes borrow records through the store so availability and
// quota rules hold for the seeded data too. Dates are spread over the last
// three months; roughly seventy percent of the loans come back returned.
func seedBorrows(ctx context.Context, rng *rand.Rand, st store.Store, users []*domain.User, books []*domain.Book) {
	fmt.Printf("正在生成 %d 条借阅记录...\n", *borrowCount)
	if len(users) == 0 || len(books) == 0 {
		fmt.Println("  ✗ 用户或图书数据不足，无法生成借阅记录")
		return
	}

	now := time.Now()
	created := 0
	for i := 0; i < *borrowCount; i++ {
		user := users[rng.Intn(len(users))]
		book := books[rng.Intn(len(books))]
		days := 15 + rng.Intn(46)
		borrowedAgo := 1 + rng.Intn(90)

		loanID, err := id.Generate("loan")
		if err != nil {
			log.Fatalf("Failed to generate loan ID: %v", err)
		}
		borrowDate := now.AddDate(0, 0, -borrowedAgo)
		record := &domain.BorrowRecord{
			ID:         loanID,
			UserID:     user.ID,
			BookID:     book.ID,
			BorrowDate: borrowDate,
			DueDate:    borrowDate.AddDate(0, 0, days),
		}
		if err := st.BorrowBook(ctx, record); err != nil {
			// Quota hits and empty shelves are expected with random picks.
			continue
		}
		created++

		if rng.Float64() < 0.7 {
			maxReturn := borrowedAgo
			if days < maxReturn {
				maxReturn = days
			}
			returnDate := borrowDate.AddDate(0, 0, 1+rng.Intn(maxReturn))
			if _, err := st.ReturnLoan(ctx, loanID, returnDate); err != nil {
				fmt.Printf("  ✗ 归还失败 %s: %v\n", loanID, err)
			}
		}
	}
	fmt.Printf("成功生成 %d 条借阅记录\n", created)
}
