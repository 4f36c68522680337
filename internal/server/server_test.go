package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/moneytrail/apiserver/config"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/mail"
	"github.com/moneytrail/apiserver/internal/services"
	"github.com/moneytrail/apiserver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type inbox struct {
	mu   sync.Mutex
	last map[string]string
}

func (i *inbox) Send(ctx context.Context, msg mail.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.last[msg.To] = codePattern.FindString(msg.Body)
	return nil
}

func (i *inbox) code(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last[email]
}

type APISuite struct {
	suite.Suite
	srv   *Server
	inbox *inbox
	now   time.Time
	clock sync.Mutex
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	disk, err := storage.NewLocalDisk(s.T().TempDir())
	s.Require().NoError(err)
	s.Require().NoError(disk.EnsureBucket(context.Background()))

	s.inbox = &inbox{last: make(map[string]string)}
	s.now = time.Now().UTC()
	cfg := config.Config{
		ServerPort:    8000,
		PublicBaseURL: "http://api.test",
		ClientURL:     "*",
		Auth:          config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
		RateLimit:     config.RateLimitConfig{AuthRPS: 1000, AuthBurst: 1000},
	}
	s.srv = NewWithDeps(cfg, log.Discard(), Deps{
		Stores:  MemoryStores(),
		Objects: disk,
		Mailer:  s.inbox,
		Clock:   s.clockNow,
	})
}

func (s *APISuite) TearDownTest() {
	s.srv.limiter.Stop()
}

func (s *APISuite) clockNow() time.Time {
	s.clock.Lock()
	defer s.clock.Unlock()
	return s.now
}

func (s *APISuite) advance(d time.Duration) {
	s.clock.Lock()
	defer s.clock.Unlock()
	s.now = s.now.Add(d)
}

func (s *APISuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.srv.Router().ServeHTTP(rr, req)
	return rr
}

func (s *APISuite) decode(rr *httptest.ResponseRecorder, dst any) {
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func (s *APISuite) signUp(email string) string {
	rr := s.do(http.MethodPost, "/api/v1/auth/send-otp", "", map[string]string{"email": email})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodPost, "/api/v1/auth/verify-register", "", map[string]string{
		"email":    email,
		"otp":      s.inbox.code(email),
		"fullName": "Test User",
		"password": "password123",
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	s.decode(rr, &resp)
	s.Require().NotEmpty(resp.Token)
	s.NotContains(resp.User, "passwordHash")
	return resp.Token
}

type dashboardBody struct {
	TotalBalance      float64 `json:"totalBalance"`
	TotalIncome       float64 `json:"totalIncome"`
	TotalExpense      float64 `json:"totalExpense"`
	ExpenseLast30Days struct {
		Total        float64          `json:"total"`
		Transactions []map[string]any `json:"transactions"`
	} `json:"expenseLast30Days"`
	IncomeLast60Days struct {
		Total        float64          `json:"total"`
		Transactions []map[string]any `json:"transactions"`
	} `json:"incomeLast60Days"`
	RecentTransactions []map[string]any `json:"recentTransactions"`
}

func (s *APISuite) dashboard(token string) dashboardBody {
	rr := s.do(http.MethodGet, "/dashboard", token, nil)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	var body dashboardBody
	s.decode(rr, &body)
	return body
}

func (s *APISuite) TestEmptyDashboard() {
	token := s.signUp("empty@example.com")

	body := s.dashboard(token)
	s.Zero(body.TotalBalance)
	s.Zero(body.TotalIncome)
	s.Zero(body.TotalExpense)
	s.NotNil(body.RecentTransactions)
	s.Empty(body.RecentTransactions)
}

func (s *APISuite) TestSalaryAndRentScenario() {
	token := s.signUp("ada@example.com")
	today := s.clockNow().Format(time.DateOnly)

	rr := s.do(http.MethodPost, "/income/add", token, map[string]any{"source": "Salary", "amount": 1000, "date": today})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	rr = s.do(http.MethodPost, "/expense/add", token, map[string]any{"category": "Rent", "amount": "400", "date": today})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	body := s.dashboard(token)
	s.Equal(1000.0, body.TotalIncome)
	s.Equal(400.0, body.TotalExpense)
	s.Equal(600.0, body.TotalBalance)
	s.Require().Len(body.RecentTransactions, 2)
	s.Equal("income", body.RecentTransactions[0]["type"])
	s.Equal("Salary", body.RecentTransactions[0]["source"])
	s.Equal("expense", body.RecentTransactions[1]["type"])
	s.Equal("Rent", body.RecentTransactions[1]["category"])
}

func (s *APISuite) TestExpenseWindowBoundaries() {
	token := s.signUp("window@example.com")
	for _, days := range []int{29, 31} {
		date := s.clockNow().AddDate(0, 0, -days).Format(time.DateOnly)
		rr := s.do(http.MethodPost, "/expense/add", token, map[string]any{"category": "Day", "amount": days, "date": date})
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	}

	body := s.dashboard(token)
	s.Require().Len(body.ExpenseLast30Days.Transactions, 1)
	s.Equal(29.0, body.ExpenseLast30Days.Transactions[0]["amount"])
	s.Equal(29.0, body.ExpenseLast30Days.Total)
	s.Equal(60.0, body.TotalExpense)
}

func (s *APISuite) TestCreateRequiresAllFields() {
	token := s.signUp("fields@example.com")

	rr := s.do(http.MethodPost, "/income/add", token, map[string]any{"amount": 10, "date": "2026-01-01"})
	s.Equal(http.StatusBadRequest, rr.Code)
	var errBody map[string]string
	s.decode(rr, &errBody)
	s.Equal("all fields are required", errBody["message"])
}

func (s *APISuite) TestOverflowingAmountIsRejected() {
	token := s.signUp("overflow@example.com")

	rr := s.do(http.MethodPost, "/income/add", token, map[string]any{"source": "Salary", "amount": "1e400", "date": "2026-01-01"})
	s.Equal(http.StatusBadRequest, rr.Code)
	var errBody map[string]string
	s.decode(rr, &errBody)
	s.Equal("amount must be a finite number", errBody["message"])

	rr = s.do(http.MethodGet, "/income/get", token, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var items []map[string]any
	s.decode(rr, &items)
	s.Empty(items)

	body := s.dashboard(token)
	s.Equal(0.0, body.TotalIncome)
}

func (s *APISuite) TestDeleteThenList() {
	token := s.signUp("delete@example.com")
	rr := s.do(http.MethodPost, "/api/v1/expense/add", token, map[string]any{"category": "Coffee", "amount": 3.5, "date": "2026-01-02"})
	s.Require().Equal(http.StatusCreated, rr.Code)
	var created map[string]any
	s.decode(rr, &created)
	id := created["id"].(string)

	other := s.signUp("other@example.com")
	rr = s.do(http.MethodDelete, "/expense/"+id, other, nil)
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodDelete, "/expense/"+id, token, nil)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/expense/get", token, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var items []map[string]any
	s.decode(rr, &items)
	s.Empty(items)

	rr = s.do(http.MethodDelete, "/expense/"+id, token, nil)
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *APISuite) TestSecondCodeWithinCooldownIs429() {
	body := map[string]string{"email": "cool@example.com"}
	rr := s.do(http.MethodPost, "/auth/send-otp", "", body)
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.do(http.MethodPost, "/auth/send-otp", "", body)
	s.Equal(http.StatusTooManyRequests, rr.Code)

	s.advance(services.CodeCooldown)
	rr = s.do(http.MethodPost, "/auth/resend-otp", "", body)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *APISuite) TestLoginWrongPasswordIs401() {
	s.signUp("login@example.com")

	rr := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "login@example.com", "password": "nope-nope"})
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.NotContains(rr.Body.String(), "token")

	rr = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "login@example.com", "password": "password123"})
	s.Require().Equal(http.StatusOK, rr.Code)
	var resp map[string]any
	s.decode(rr, &resp)
	s.NotEmpty(resp["token"])
}

func (s *APISuite) TestProtectedRoutesRequireToken() {
	for _, path := range []string{"/dashboard", "/income/get", "/expense/downloadexcel", "/auth/me"} {
		rr := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, rr.Code, path)

		rr = s.do(http.MethodGet, path, "not-a-jwt", nil)
		s.Equal(http.StatusUnauthorized, rr.Code, path)
	}
}

func (s *APISuite) TestMeAndProfileUpdate() {
	token := s.signUp("me@example.com")

	rr := s.do(http.MethodPut, "/auth/me", token, map[string]string{"fullName": "Renamed"})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/auth/me", token, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	var me map[string]any
	s.decode(rr, &me)
	s.Equal("Renamed", me["fullName"])
	s.Equal("me@example.com", me["email"])
}

func (s *APISuite) TestExportDownload() {
	token := s.signUp("export@example.com")
	rr := s.do(http.MethodPost, "/income/add", token, map[string]any{"source": "Salary", "amount": 10, "date": "2026-01-01"})
	s.Require().Equal(http.StatusCreated, rr.Code)

	rr = s.do(http.MethodGet, "/income/downloadexcel", token, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(services.XLSXContentType, rr.Header().Get("Content-Type"))
	s.Contains(rr.Header().Get("Content-Disposition"), "income_details.xlsx")
	s.True(bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))
}

func (s *APISuite) TestUploadImageAndServeIt() {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("image", "avatar.png")
	s.Require().NoError(err)
	_, err = part.Write(png)
	s.Require().NoError(err)
	s.Require().NoError(form.Close())

	req := httptest.NewRequest(http.MethodPost, "/auth/upload-image", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rr := httptest.NewRecorder()
	s.srv.Router().ServeHTTP(rr, req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	var resp map[string]string
	s.decode(rr, &resp)
	s.Require().Regexp(`^http://api\.test/uploads/profile-images/.+\.png$`, resp["imageUrl"])

	path := resp["imageUrl"][len("http://api.test"):]
	rr = s.do(http.MethodGet, path, "", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("image/png", rr.Header().Get("Content-Type"))
	s.Equal(png, rr.Body.Bytes())
}

func (s *APISuite) TestHealthz() {
	rr := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rr.Code)
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, allowedOrigins(""))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, allowedOrigins(" http://a.test, http://b.test ,"))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, log.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
