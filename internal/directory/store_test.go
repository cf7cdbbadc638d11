package directory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "directory.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUsers(t *testing.T, s *Store) map[string]int64 {
	t.Helper()
	users := []User{
		{Name: "Анна Смирнова", UserType: UserClient, Gender: "female", BirthDate: "1985-03-08", Company: "Весна", Segment: greeting.SegmentVIP, Interests: []string{"театр", "тюльпаны"}, TelegramChatID: "100"},
		{Name: "Иван Петров", UserType: UserClient, Gender: "male", BirthDate: "1979-11-21", Position: "Финансовый директор", Interests: []string{"IT", "гаджеты"}, TelegramChatID: "200"},
		{Name: "Мария Козлова", UserType: UserEmployee, Gender: "Female", BirthDate: "1990-03-08", Tone: greeting.ToneFriendly},
		{Name: "Олег Сидоров", UserType: UserEmployee, Gender: "male", Interests: []string{"Кибербезопасность"}, TelegramChatID: "300"},
	}
	ids := map[string]int64{}
	for _, u := range users {
		id, err := s.AddUser(context.Background(), u)
		require.NoError(t, err)
		ids[u.Name] = id
	}
	return ids
}

func names(users []User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Name)
	}
	return out
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s := openTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, SchemaVersion, version)

	// Re-running is a no-op.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), " ", nil)
	assert.Error(t, err)
}

func TestAddUser_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ids := seedUsers(t, s)

	u, err := s.GetUser(context.Background(), ids["Анна Смирнова"])
	require.NoError(t, err)
	assert.Equal(t, UserClient, u.UserType)
	assert.Equal(t, "1985-03-08", u.BirthDate)
	assert.Equal(t, greeting.SegmentVIP, u.Segment)
	assert.Equal(t, []string{"театр", "тюльпаны"}, u.Interests)
	assert.True(t, u.Activated())

	_, err = s.GetUser(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddUser_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AddUser(ctx, User{UserType: UserClient})
	assert.ErrorContains(t, err, "name")
	_, err = s.AddUser(ctx, User{Name: "X", UserType: "partner"})
	assert.ErrorContains(t, err, "user_type")
	_, err = s.AddUser(ctx, User{Name: "X", UserType: UserClient, BirthDate: "08.03.1985"})
	assert.ErrorContains(t, err, "birth_date")
}

func TestImportUsers_AllOrNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.ImportUsers(ctx, []User{
		{Name: "A", UserType: UserClient},
		{Name: "B", UserType: UserEmployee},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.ImportUsers(ctx, []User{
		{Name: "C", UserType: UserClient},
		{Name: "", UserType: UserClient},
	})
	assert.ErrorContains(t, err, "user 2")

	all, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(all))
}

func TestUsersByBirthday(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	users, err := s.UsersByBirthday(context.Background(), 8, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Анна Смирнова", "Мария Козлова"}, names(users))

	users, err = s.UsersByBirthday(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = s.UsersByBirthday(context.Background(), 1, 13)
	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx))
	require.NoError(t, s.Seed(ctx))

	holidays, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, holidays, len(DefaultHolidays))
	assert.Equal(t, "01-01", holidays[0].DateFixed)

	found, err := s.HolidaysByDate(ctx, 2, 12)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "День банковского работника", found[0].Name)
	assert.Equal(t, greeting.ProfessionalHoliday, found[0].Category)
	assert.Equal(t, AudienceClients, found[0].Audience)
}

func TestAddHoliday_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AddHoliday(ctx, Holiday{Name: "X", DateFixed: "13-01", Audience: AudienceAll, Category: greeting.NewYear})
	assert.ErrorContains(t, err, "MM-DD")
	_, err = s.AddHoliday(ctx, Holiday{Name: "X", DateFixed: "01-01", Audience: "robots", Category: greeting.NewYear})
	assert.ErrorContains(t, err, "audience")
	_, err = s.AddHoliday(ctx, Holiday{Name: "X", DateFixed: "01-01", Audience: AudienceAll, Category: "defender_day"})
	assert.ErrorContains(t, err, "category")

	h := Holiday{Name: "День основания", DateFixed: "04-15", Audience: AudienceEmployees, Category: greeting.FoundingDay}
	_, err = s.AddHoliday(ctx, h)
	require.NoError(t, err)
	_, err = s.AddHoliday(ctx, h)
	assert.Error(t, err, "duplicate name and date")
}

func TestInAudience(t *testing.T) {
	client := User{UserType: UserClient, Gender: "male", Interests: []string{"рыбалка"}}
	employee := User{UserType: UserEmployee, Gender: "FEMALE", Interests: []string{"Новые технологии"}}

	assert.True(t, InAudience(client, AudienceAll))
	assert.True(t, InAudience(client, AudienceMen))
	assert.False(t, InAudience(client, AudienceWomen))
	assert.True(t, InAudience(employee, AudienceWomen))
	assert.True(t, InAudience(employee, AudienceEmployees))
	assert.False(t, InAudience(employee, AudienceClients))
	assert.True(t, InAudience(employee, AudienceIT))
	assert.False(t, InAudience(client, AudienceIT))
	assert.True(t, InAudience(User{Interests: []string{"IT"}}, AudienceIT))
	assert.False(t, InAudience(client, "unknown"))
}

func TestCelebrations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUsers(t, s)
	require.NoError(t, s.Seed(ctx))

	c, err := s.Celebrations(ctx, time.Date(2026, time.March, 8, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "08.03.2026", c.Date)
	assert.Equal(t, []string{"Анна Смирнова", "Мария Козлова"}, names(c.Birthdays))
	require.Len(t, c.Holidays, 1)
	assert.Equal(t, greeting.WomensDay, c.Holidays[0].Holiday.Category)
	// Мария is female but has no chat id, so only activated women are listed.
	assert.Equal(t, []string{"Анна Смирнова"}, names(c.Holidays[0].Users))

	c, err = s.Celebrations(ctx, time.Date(2026, time.November, 21, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"Иван Петров"}, names(c.Birthdays))
	require.Len(t, c.Holidays, 1)
	assert.Equal(t, []string{"Анна Смирнова", "Иван Петров"}, names(c.Holidays[0].Users))
}

func TestUserRequest(t *testing.T) {
	u := User{Name: "Анна", Company: "Весна", Position: "CFO", Segment: greeting.SegmentVIP, Interests: []string{"театр"}}
	req := u.Request("08.03.2026", greeting.WomensDay)

	assert.Equal(t, greeting.Request{
		EventDate:     "08.03.2026",
		EventCategory: greeting.WomensDay,
		ClientName:    "Анна",
		CompanyName:   "Весна",
		Position:      "CFO",
		ClientSegment: greeting.SegmentVIP,
		Preferences:   []string{"театр"},
	}, req)
	assert.NoError(t, req.Validate())
}
