package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

// Services bundles the business services the handler dispatches to.
type Services struct {
	Auth        *service.AuthService
	Users       *service.UserService
	Catalog     *service.CatalogService
	Circulation *service.CirculationService
	Stats       *service.StatsService
	Emails      *service.EmailService
	Importer    *service.ImportService
}

// Handler routes decoded requests to the business services. The protocol is
// stateless: every request identifies its caller inside the data object
// (user_id for self-service actions, operator_id for administrative ones).
type Handler struct {
	svcs   Services
	logger *slog.Logger
	routes map[string]route
}

type handlerFunc func(ctx context.Context, data jsoniter.RawMessage) *Response

type route struct {
	fn        handlerFunc
	adminOnly bool
}

// NewHandler builds the action table.
func NewHandler(svcs Services, logger *slog.Logger) *Handler {
	h := &Handler{svcs: svcs, logger: logger}
	h.routes = map[string]route{
		"login":            {fn: h.login},
		"register":         {fn: h.register},
		"get_user_info":    {fn: h.getUserInfo},
		"update_user_info": {fn: h.updateUserInfo},
		"change_password":  {fn: h.changePassword},

		"search_books":   {fn: h.searchBooks},
		"get_book":       {fn: h.getBook},
		"get_categories": {fn: h.getCategories},

		"borrow_book":    {fn: h.borrowBook},
		"return_book":    {fn: h.returnBook},
		"get_my_borrows": {fn: h.getMyBorrows},

		"send_email":    {fn: h.sendEmail},
		"get_my_emails": {fn: h.getMyEmails},

		"add_book":            {fn: h.addBook, adminOnly: true},
		"update_book":         {fn: h.updateBook, adminOnly: true},
		"delete_book":         {fn: h.deleteBook, adminOnly: true},
		"update_borrow":       {fn: h.updateBorrow, adminOnly: true},
		"get_all_borrows":     {fn: h.getAllBorrows, adminOnly: true},
		"get_statistics":      {fn: h.getStatistics, adminOnly: true},
		"get_all_users":       {fn: h.getAllUsers, adminOnly: true},
		"admin_add_user":      {fn: h.adminAddUser, adminOnly: true},
		"admin_update_user":   {fn: h.adminUpdateUser, adminOnly: true},
		"admin_delete_user":   {fn: h.adminDeleteUser, adminOnly: true},
		"get_all_emails":      {fn: h.getAllEmails, adminOnly: true},
		"import_books":        {fn: h.importBooks, adminOnly: true},
		"get_admin_dashboard": {fn: h.getAdminDashboard, adminOnly: true},
		"get_user_dashboard":  {fn: h.getUserDashboard, adminOnly: true},
	}
	return h
}

// Handle dispatches one request and always produces a response envelope.
func (h *Handler) Handle(ctx context.Context, req *Request) *Response {
	entry, ok := h.routes[req.Action]
	if !ok {
		return &Response{
			Success: false,
			Message: fmt.Sprintf("未知操作: %s", req.Action),
			Code:    string(domainerrors.CodeValidation),
		}
	}
	if entry.adminOnly {
		if resp := h.requireAdmin(ctx, req.Data); resp != nil {
			return resp
		}
	}
	return entry.fn(ctx, req.Data)
}

// requireAdmin resolves data.operator_id to an admin account. A missing,
// unknown or non-admin operator all produce the same refusal so the check
// leaks nothing about which accounts exist.
func (h *Handler) requireAdmin(ctx context.Context, data jsoniter.RawMessage) *Response {
	var probe struct {
		OperatorID string `json:"operator_id"`
	}
	if err := decode(data, &probe); err != nil {
		return fail(err)
	}
	forbidden := &Response{
		Success: false,
		Message: "权限不足",
		Code:    string(domainerrors.CodeForbidden),
	}
	if probe.OperatorID == "" {
		return forbidden
	}
	operator, err := h.svcs.Users.GetUser(ctx, probe.OperatorID)
	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.CodeNotFound {
			return forbidden
		}
		return fail(err)
	}
	if !operator.IsAdmin() {
		return forbidden
	}
	return nil
}

func (h *Handler) login(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req service.LoginRequest
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	user, err := h.svcs.Auth.Login(ctx, req)
	if err != nil {
		return fail(err)
	}
	return ok(user)
}

func (h *Handler) register(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req service.RegisterRequest
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	user, err := h.svcs.Auth.Register(ctx, req)
	if err != nil {
		return fail(err)
	}
	return okMsg("注册成功", user)
}

func (h *Handler) getUserInfo(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	user, err := h.svcs.Users.GetUser(ctx, req.UserID)
	if err != nil {
		return fail(err)
	}
	return ok(user)
}

func (h *Handler) updateUserInfo(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string `json:"user_id"`
		service.UpdateProfileRequest
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	req.AgeSet = hasKey(data, "age")
	user, err := h.svcs.Users.UpdateProfile(ctx, req.UserID, req.UpdateProfileRequest)
	if err != nil {
		return fail(err)
	}
	return okMsg("更新成功", user)
}

func (h *Handler) changePassword(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string `json:"user_id"`
		service.ChangePasswordRequest
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	if err := h.svcs.Auth.ChangePassword(ctx, req.UserID, req.ChangePasswordRequest); err != nil {
		return fail(err)
	}
	return okMsg("密码修改成功", nil)
}

func (h *Handler) searchBooks(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		Keyword  string `json:"keyword"`
		Category string `json:"category"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	books, err := h.svcs.Catalog.Search(ctx, req.Keyword, req.Category)
	if err != nil {
		return fail(err)
	}
	return ok(books)
}

func (h *Handler) getBook(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		BookID string `json:"book_id"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	book, err := h.svcs.Catalog.GetBook(ctx, req.BookID)
	if err != nil {
		return fail(err)
	}
	return ok(book)
}

func (h *Handler) getCategories(ctx context.Context, _ jsoniter.RawMessage) *Response {
	categories, err := h.svcs.Catalog.Categories(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(categories)
}

func (h *Handler) borrowBook(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req service.BorrowRequest
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	record, err := h.svcs.Circulation.Borrow(ctx, req)
	if err != nil {
		return fail(err)
	}
	return okMsg("借阅成功", record)
}

func (h *Handler) returnBook(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		RecordID string `json:"record_id"`
		UserID   string `json:"user_id"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	var caller *domain.User
	if req.UserID != "" {
		u, err := h.svcs.Users.GetUser(ctx, req.UserID)
		if err != nil {
			return fail(err)
		}
		caller = u
	}
	record, err := h.svcs.Circulation.Return(ctx, caller, req.RecordID)
	if err != nil {
		return fail(err)
	}
	return okMsg("归还成功", record)
}

func (h *Handler) getMyBorrows(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string            `json:"user_id"`
		Status domain.LoanStatus `json:"status"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	loans, err := h.svcs.Circulation.MyLoans(ctx, req.UserID, req.Status)
	if err != nil {
		return fail(err)
	}
	return ok(loans)
}

func (h *Handler) sendEmail(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string `json:"user_id"`
		service.SendEmailRequest
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	email, err := h.svcs.Emails.Send(ctx, req.UserID, req.SendEmailRequest)
	if err != nil {
		return fail(err)
	}
	return okMsg("发送成功", email)
}

func (h *Handler) getMyEmails(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	emails, err := h.svcs.Emails.MyEmails(ctx, req.UserID)
	if err != nil {
		return fail(err)
	}
	return ok(emails)
}

func (h *Handler) addBook(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req service.AddBookRequest
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	book, err := h.svcs.Catalog.AddBook(ctx, req)
	if err != nil {
		return fail(err)
	}
	return okMsg("添加成功", book)
}

func (h *Handler) updateBook(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		BookID string `json:"book_id"`
		domain.BookPatch
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	book, err := h.svcs.Catalog.UpdateBook(ctx, req.BookID, req.BookPatch)
	if err != nil {
		return fail(err)
	}
	return okMsg("更新成功", book)
}

func (h *Handler) deleteBook(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		BookID string `json:"book_id"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	if err := h.svcs.Catalog.DeleteBook(ctx, req.BookID); err != nil {
		return fail(err)
	}
	return okMsg("删除成功", nil)
}

func (h *Handler) updateBorrow(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		RecordID string `json:"record_id"`
		domain.LoanPatch
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	record, err := h.svcs.Circulation.AdminUpdateLoan(ctx, req.RecordID, req.LoanPatch)
	if err != nil {
		return fail(err)
	}
	return okMsg("更新成功", record)
}

func (h *Handler) getAllBorrows(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		Status domain.LoanStatus `json:"status"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	loans, err := h.svcs.Circulation.AllLoans(ctx, req.Status)
	if err != nil {
		return fail(err)
	}
	return ok(loans)
}

func (h *Handler) getStatistics(ctx context.Context, _ jsoniter.RawMessage) *Response {
	stats, err := h.svcs.Stats.Statistics(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(stats)
}

func (h *Handler) getAllUsers(ctx context.Context, _ jsoniter.RawMessage) *Response {
	users, err := h.svcs.Users.ListUsers(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(users)
}

func (h *Handler) adminAddUser(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req service.AdminCreateUserRequest
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	user, err := h.svcs.Users.AdminCreateUser(ctx, req)
	if err != nil {
		return fail(err)
	}
	return okMsg("添加成功", user)
}

func (h *Handler) adminUpdateUser(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string `json:"user_id"`
		service.AdminUpdateUserRequest
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	req.AgeSet = hasKey(data, "age")
	user, err := h.svcs.Users.AdminUpdateUser(ctx, req.UserID, req.AdminUpdateUserRequest)
	if err != nil {
		return fail(err)
	}
	return okMsg("更新成功", user)
}

func (h *Handler) adminDeleteUser(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	if err := h.svcs.Users.AdminDeleteUser(ctx, req.UserID); err != nil {
		return fail(err)
	}
	return okMsg("删除成功", nil)
}

func (h *Handler) getAllEmails(ctx context.Context, _ jsoniter.RawMessage) *Response {
	emails, err := h.svcs.Emails.AllEmails(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(emails)
}

func (h *Handler) importBooks(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req service.ImportRequest
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	result, err := h.svcs.Importer.Import(ctx, req)
	if err != nil {
		return fail(err)
	}
	msg := fmt.Sprintf("导入完成：成功 %d 本，跳过 %d 本", result.Stored, result.Skipped)
	return okMsg(msg, result)
}

func (h *Handler) getAdminDashboard(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		Days int `json:"days"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	dashboard, err := h.svcs.Stats.AdminDashboard(ctx, req.Days)
	if err != nil {
		return fail(err)
	}
	return ok(dashboard)
}

func (h *Handler) getUserDashboard(ctx context.Context, data jsoniter.RawMessage) *Response {
	var req struct {
		Months int `json:"months"`
		Limit  int `json:"limit"`
	}
	if err := decode(data, &req); err != nil {
		return fail(err)
	}
	dashboard, err := h.svcs.Stats.UserDashboard(ctx, req.Months, req.Limit)
	if err != nil {
		return fail(err)
	}
	return ok(dashboard)
}

func ok(data any) *Response {
	return &Response{Success: true, Data: data}
}

func okMsg(msg string, data any) *Response {
	return &Response{Success: true, Message: msg, Data: data}
}

// fail converts a service error into a failure envelope. Storage and
// internal failures get the generic server-error prefix so persistence
// details never reach clients verbatim.
func fail(err error) *Response {
	var derr *domainerrors.Error
	if errors.As(err, &derr) {
		msg := derr.Message
		switch derr.Code {
		case domainerrors.CodeStorage, domainerrors.CodeInternal:
			msg = "服务器错误: " + derr.Message
		}
		return &Response{Success: false, Message: msg, Code: string(derr.Code)}
	}
	return &Response{
		Success: false,
		Message: "服务器错误: " + err.Error(),
		Code:    string(domainerrors.CodeInternal),
	}
}

// decode unmarshals the data object, treating an absent object as empty.
func decode(data jsoniter.RawMessage, v any) error {
	if len(data) == 0 {
		data = jsoniter.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domainerrors.Validation("无效的请求格式")
	}
	return nil
}

// hasKey reports whether the data object carries the given key, so partial
// updates can tell "clear age" apart from "leave age alone".
func hasKey(data jsoniter.RawMessage, key string) bool {
	if len(data) == 0 {
		return false
	}
	var probe map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	_, present := probe[key]
	return present
}
