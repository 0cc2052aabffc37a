package domain

import "fmt"

// Borrowing quotas per role: the maximum number of simultaneous active
// loans. The table is fixed; it is not runtime configuration.
const (
	maxLoansUser   = 2
	maxLoansMember = 5
	// Admins are effectively unlimited.
	maxLoansAdmin = 999
)

// BorrowQuota returns the maximum number of concurrent active loans for a
// role. Unknown roles fall back to the regular user quota.
func BorrowQuota(role Role) int {
	switch role {
	case RoleAdmin:
		return maxLoansAdmin
	case RoleMember:
		return maxLoansMember
	default:
		return maxLoansUser
	}
}

// CheckQuota decides whether a user with the given role and current count
// of active loans may create one more. It is a pure decision function; the
// caller supplies the count. On denial the reason is a user-facing string.
func CheckQuota(role Role, activeLoans int) (allowed bool, reason string) {
	limit := BorrowQuota(role)
	if activeLoans >= limit {
		return false, fmt.Sprintf("%s最多可借阅%d本，您当前已借阅%d本，无法继续借阅",
			role.Label(), limit, activeLoans)
	}
	return true, ""
}
