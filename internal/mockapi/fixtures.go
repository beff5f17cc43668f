package mockapi

// DefaultAPIKey is the key handed out by GET /api/key.
const DefaultAPIKey = "609dab841280674f1a780272f59e9e4e"

type account struct {
	holder string
	status string
}

// Fixture account statuses.
const (
	statusActive   = "ACTIVE"
	statusInactive = "INACTIVE"
	statusClosed   = "CLOSED"
	statusBlocked  = "BLOCKED"
)

var banks = map[string]string{
	"01": "ABC Bank",
	"02": "XYZ Bank",
	"03": "LMN Bank",
	"04": "PQR Bank",
	"05": "STU Bank",
}

var accounts = map[string]map[string]account{
	"01": {
		"1234567890": {"John Doe", statusActive},
		"5555555555": {"Alice Johnson", statusActive},
		"3333444455": {"Eve Davis", statusActive},
	},
	"02": {
		"9876543210": {"Jane Smith", statusActive},
		"7777666655": {"David Miller", statusActive},
		"5551212121": {"Missing Name", statusActive},
	},
	"03": {
		"1111222233": {"Bob Williams", statusActive},
		"2468135790": {"Grace Taylor", statusInactive},
	},
	"04": {
		"9999888877": {"Carol Brown", statusActive},
		"1357924680": {"Henry Anderson", statusClosed},
	},
	"05": {
		"8765432109": {"Frank Wilson", statusBlocked},
	},
}

// Remote error codes and their descriptions.
const (
	CodeAccountNotFound = "AC01"
	CodeAccountClosed   = "AC04"
	CodeAccountBlocked  = "AC06"
	CodeAccountInactive = "AC07"
	CodeInvalidFormat   = "RJCT"
	CodeInvalidBank     = "AM04"
)

var codeMessages = map[string]string{
	CodeAccountNotFound: "Account does not exist",
	CodeAccountClosed:   "Account is closed",
	CodeAccountBlocked:  "Account is blocked",
	CodeAccountInactive: "Account is inactive",
	CodeInvalidFormat:   "Invalid format",
	CodeInvalidBank:     "Invalid bank code",
}

var statusCodes = map[string]string{
	statusClosed:   CodeAccountClosed,
	statusInactive: CodeAccountInactive,
	statusBlocked:  CodeAccountBlocked,
}

var (
	firstNames = []string{"John", "Mary", "James", "Patricia", "Robert", "Jennifer", "Michael", "Linda", "William", "Elizabeth"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Jones", "Brown", "Davis", "Miller", "Wilson", "Moore", "Taylor"}
)
