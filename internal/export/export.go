// Package export writes admin user exports and reports to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/metrics"
	"indieforge/backend/internal/models"
	"indieforge/backend/internal/policy"
	"indieforge/backend/internal/storage"
)

const (
	timestampLayout = "20060102_150405"
	maxListed       = 10
)

// Roles accepted by UsersByRole.
var Roles = []string{"admin", "developer", "user", "all"}

var csvHeader = []string{"id", "username", "email", "is_active", "is_developer", "is_admin", "avatar_url", "role_display"}

// Result describes a freshly written export.
type Result struct {
	Filename    string `json:"filename"`
	Kind        string `json:"kind"`
	DownloadURL string `json:"download_url"`
}

// FileInfo is one entry of the export listing.
type FileInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Type     string    `json:"type"`
}

type userRecord struct {
	ID          uint    `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	IsActive    bool    `json:"is_active"`
	IsDeveloper bool    `json:"is_developer"`
	IsAdmin     bool    `json:"is_admin"`
	AvatarURL   *string `json:"avatar_url"`
	CreatedAt   string  `json:"created_at"`
	RoleDisplay string  `json:"role_display"`
}

type roleCounts struct {
	Admins       int `json:"admins"`
	Developers   int `json:"developers"`
	RegularUsers int `json:"regular_users"`
}

// Service produces export documents. Files are stored under dir in the
// configured storage backend.
type Service struct {
	db      *gorm.DB
	store   storage.Service
	dir     string
	log     *logrus.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(db *gorm.DB, store storage.Service, dir string, log *logrus.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		store:   store,
		dir:     strings.Trim(dir, "/"),
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// UsersJSON exports every user with role counts.
func (s *Service) UsersJSON(ctx context.Context, actor *models.User) (*Result, error) {
	if err := policy.Authorize(actor, policy.ActionExport, nil); err != nil {
		return nil, err
	}
	users, err := s.loadUsers(ctx, "all")
	if err != nil {
		return nil, err
	}

	counts := countRoles(users)
	doc := struct {
		ExportInfo struct {
			Timestamp  time.Time `json:"timestamp"`
			TotalUsers int       `json:"total_users"`
			roleCounts
		} `json:"export_info"`
		Users []userRecord `json:"users"`
	}{Users: toRecords(users)}
	doc.ExportInfo.Timestamp = s.now().UTC()
	doc.ExportInfo.TotalUsers = len(users)
	doc.ExportInfo.roleCounts = counts

	return s.writeJSON(ctx, "users", "users_export", doc)
}

// UsersCSV exports every user as CSV.
func (s *Service) UsersCSV(ctx context.Context, actor *models.User) (*Result, error) {
	if err := policy.Authorize(actor, policy.ActionExport, nil); err != nil {
		return nil, err
	}
	users, err := s.loadUsers(ctx, "all")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range toRecords(users) {
		avatar := ""
		if r.AvatarURL != nil {
			avatar = *r.AvatarURL
		}
		row := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.Username,
			r.Email,
			strconv.FormatBool(r.IsActive),
			strconv.FormatBool(r.IsDeveloper),
			strconv.FormatBool(r.IsAdmin),
			avatar,
			r.RoleDisplay,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return s.write(ctx, "csv", s.filename("users_export", ".csv"), "text/csv", &buf)
}

// UsersByRole exports the users matching role (admin, developer, user or all).
// "developer" excludes admins and "user" means neither flag.
func (s *Service) UsersByRole(ctx context.Context, actor *models.User, role string) (*Result, error) {
	if err := policy.Authorize(actor, policy.ActionExport, nil); err != nil {
		return nil, err
	}
	prefix, ok := rolePrefix(role)
	if !ok {
		return nil, apperr.Validation("Invalid role. Allowed values: " + strings.Join(Roles, ", "))
	}
	users, err := s.loadUsers(ctx, role)
	if err != nil {
		return nil, err
	}

	doc := struct {
		ExportInfo struct {
			Timestamp  time.Time `json:"timestamp"`
			RoleFilter string    `json:"role_filter"`
			Count      int       `json:"count"`
		} `json:"export_info"`
		Users []userRecord `json:"users"`
	}{Users: toRecords(users)}
	doc.ExportInfo.Timestamp = s.now().UTC()
	doc.ExportInfo.RoleFilter = role
	doc.ExportInfo.Count = len(users)

	return s.writeJSON(ctx, "by_role", prefix+"_export", doc)
}

// SummaryReport writes aggregate account statistics.
func (s *Service) SummaryReport(ctx context.Context, actor *models.User) (*Result, error) {
	if err := policy.Authorize(actor, policy.ActionExport, nil); err != nil {
		return nil, err
	}
	return s.summaryReport(ctx)
}

func (s *Service) summaryReport(ctx context.Context) (*Result, error) {
	users, err := s.loadUsers(ctx, "all")
	if err != nil {
		return nil, err
	}

	counts := countRoles(users)
	type statistics struct {
		TotalUsers       int `json:"total_users"`
		ActiveUsers      int `json:"active_users"`
		InactiveUsers    int `json:"inactive_users"`
		UsersWithAvatars int `json:"users_with_avatars"`
		roleCounts
	}
	stats := statistics{TotalUsers: len(users), roleCounts: counts}
	admins := []string{}
	developers := []string{}
	for _, u := range users {
		if u.IsActive {
			stats.ActiveUsers++
		} else {
			stats.InactiveUsers++
		}
		if u.AvatarURL != nil && *u.AvatarURL != "" {
			stats.UsersWithAvatars++
		}
		switch {
		case u.IsAdmin:
			admins = append(admins, u.Username)
		case u.IsDeveloper:
			developers = append(developers, u.Username)
		}
	}

	type named struct {
		Count     int      `json:"count"`
		Usernames []string `json:"usernames,omitempty"`
	}
	doc := map[string]any{
		"report_info": map[string]any{
			"generated_at": s.now().UTC(),
			"report_type":  "User Summary Report",
		},
		"statistics": stats,
		"role_breakdown": map[string]named{
			"administrators": {Count: len(admins), Usernames: admins},
			"developers":     {Count: len(developers), Usernames: developers},
			"regular_users":  {Count: counts.RegularUsers},
		},
		"system_health": map[string]float64{
			"active_user_percentage": percentage(stats.ActiveUsers, stats.TotalUsers),
			"avatar_adoption_rate":   percentage(stats.UsersWithAvatars, stats.TotalUsers),
		},
	}

	return s.writeJSON(ctx, "summary", "user_summary_report", doc)
}

// List returns the newest export files, at most ten.
func (s *Service) List(ctx context.Context, actor *models.User) ([]FileInfo, error) {
	if err := policy.Authorize(actor, policy.ActionExport, nil); err != nil {
		return nil, err
	}

	objects, err := s.store.List(ctx, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}

	files := make([]FileInfo, 0, len(objects))
	for _, obj := range objects {
		name := path.Base(obj.Key)
		var kind string
		switch path.Ext(name) {
		case ".json":
			kind = "JSON"
		case ".csv":
			kind = "CSV"
		default:
			continue
		}
		files = append(files, FileInfo{Filename: name, Size: obj.Size, Created: obj.LastModified, Type: kind})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Created.Equal(files[j].Created) {
			return files[i].Filename > files[j].Filename
		}
		return files[i].Created.After(files[j].Created)
	})
	if len(files) > maxListed {
		files = files[:maxListed]
	}
	return files, nil
}

// Open returns the content of an export file. The caller must close it.
func (s *Service) Open(ctx context.Context, actor *models.User, filename string) (io.ReadCloser, FileInfo, error) {
	if err := policy.Authorize(actor, policy.ActionExport, nil); err != nil {
		return nil, FileInfo{}, err
	}
	if err := ValidateFilename(filename); err != nil {
		return nil, FileInfo{}, err
	}

	body, info, err := s.store.Open(ctx, path.Join(s.dir, filename))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, FileInfo{}, apperr.NotFound("Export file not found")
	}
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("open export: %w", err)
	}
	return body, FileInfo{Filename: filename, Size: info.Size, Created: info.LastModified}, nil
}

// ValidateFilename rejects names that could escape the export directory.
func ValidateFilename(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return apperr.Validation("Invalid filename")
	}
	return nil
}

func (s *Service) loadUsers(ctx context.Context, role string) ([]models.User, error) {
	query := s.db.WithContext(ctx).Order("id")
	switch role {
	case "admin":
		query = query.Where("is_admin = ?", true)
	case "developer":
		query = query.Where("is_developer = ? AND is_admin = ?", true, false)
	case "user":
		query = query.Where("is_developer = ? AND is_admin = ?", false, false)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

func (s *Service) writeJSON(ctx context.Context, kind, prefix string, doc any) (*Result, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", kind, err)
	}
	return s.write(ctx, kind, s.filename(prefix, ".json"), "application/json", bytes.NewReader(data))
}

func (s *Service) write(ctx context.Context, kind, filename, contentType string, body io.Reader) (*Result, error) {
	if err := s.store.Put(ctx, path.Join(s.dir, filename), body, contentType); err != nil {
		return nil, fmt.Errorf("store %s: %w", filename, err)
	}
	s.metrics.ExportWritten(kind)
	s.log.WithFields(logrus.Fields{"kind": kind, "filename": filename}).Info("export written")
	return &Result{
		Filename:    filename,
		Kind:        kind,
		DownloadURL: "/admin/export/download/" + filename,
	}, nil
}

// filename is prefix_<timestamp>_<short id><ext>; the id keeps two exports
// in the same second apart.
func (s *Service) filename(prefix, ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s%s", prefix, s.now().Format(timestampLayout), id, ext)
}

func rolePrefix(role string) (string, bool) {
	switch role {
	case "admin":
		return "admins", true
	case "developer":
		return "developers", true
	case "user":
		return "regular_users", true
	case "all":
		return "all_users", true
	}
	return "", false
}

func toRecords(users []models.User) []userRecord {
	records := make([]userRecord, 0, len(users))
	for _, u := range users {
		records = append(records, userRecord{
			ID:          u.ID,
			Username:    u.Username,
			Email:       u.Email,
			IsActive:    u.IsActive,
			IsDeveloper: u.IsDeveloper,
			IsAdmin:     u.IsAdmin,
			AvatarURL:   u.AvatarURL,
			CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
			RoleDisplay: u.RoleDisplay(),
		})
	}
	return records
}

func countRoles(users []models.User) roleCounts {
	var c roleCounts
	for _, u := range users {
		switch {
		case u.IsAdmin:
			c.Admins++
		case u.IsDeveloper:
			c.Developers++
		default:
			c.RegularUsers++
		}
	}
	return c
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
