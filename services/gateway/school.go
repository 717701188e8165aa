package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

// Record is a backend object as rendered by the generic pages.
type Record map[string]interface{}

// ID returns the record's identifier, whichever of "id" or "_id" the backend used.
func (r Record) ID() string {
	for _, k := range []string{"id", "_id"} {
		if v, ok := r[k]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// String returns field k formatted for display.
func (r Record) String(k string) string {
	v, ok := r[k]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]interface{}:
		if name, ok := val["name"]; ok {
			return fmt.Sprint(name)
		}
		data, _ := json.Marshal(val)
		return string(data)
	case []interface{}:
		return strconv.Itoa(len(val)) + " items"
	}
	return fmt.Sprint(v)
}

// Columns returns the sorted scalar field names found in records, ids excluded.
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for k, v := range r {
			if seen[k] || k == "id" || k == "_id" || k == "__v" || k == "password" {
				continue
			}
			if _, nested := v.([]interface{}); nested {
				continue
			}
			seen[k] = true
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

// list accepts a bare JSON array or an object wrapping it under "data" or "items".
type list []Record

func (l *list) UnmarshalJSON(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err == nil {
		*l = records
		return nil
	}
	var wrapped struct {
		Data  []Record `json:"data"`
		Items []Record `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Data != nil {
		*l = wrapped.Data
	} else {
		*l = wrapped.Items
	}
	return nil
}

// record accepts a bare object or one wrapped under "data".
type record Record

func (r *record) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Data != nil {
		*r = wrapped.Data
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = obj
	return nil
}

func (c *Client) getList(ctx context.Context, path string, query map[string]string) ([]Record, error) {
	var l list
	if err := c.Get(ctx, path, &Options{Query: query}, &l); err != nil {
		return nil, errors.Wrapf(err, "listing %s", path)
	}
	return l, nil
}

func (c *Client) getRecord(ctx context.Context, path string) (Record, error) {
	var r record
	if err := c.Get(ctx, path, nil, &r); err != nil {
		return nil, errors.Wrapf(err, "getting %s", path)
	}
	return Record(r), nil
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

func (p Page) query() map[string]string {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	return map[string]string{"page": strconv.Itoa(p.Number), "limit": strconv.Itoa(p.Limit)}
}

func escape(id string) string { return url.PathEscape(id) }

// DashboardStats returns the role's dashboard figures.
func (c *Client) DashboardStats(ctx context.Context, role user.Role) (Record, error) {
	return c.getRecord(ctx, "/dashboard/"+role.String()+"/stats")
}

// Campuses

func (c *Client) Campuses(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/campuses", nil)
}

func (c *Client) Campus(ctx context.Context, id string) (Record, error) {
	return c.getRecord(ctx, "/campuses/"+escape(id))
}

func (c *Client) CreateCampus(ctx context.Context, data interface{}) error {
	return errors.Wrap(c.Post(ctx, "/campuses", &Options{Body: data}, nil), "creating campus")
}

func (c *Client) UpdateCampus(ctx context.Context, id string, data interface{}) error {
	return errors.Wrap(c.Patch(ctx, "/campuses/"+escape(id), &Options{Body: data}, nil), "updating campus")
}

func (c *Client) DeleteCampus(ctx context.Context, id string) error {
	return errors.Wrap(c.Post(ctx, "/campuses/"+escape(id)+"/delete", nil, nil), "deleting campus")
}

// Users returns the users of role, or everybody when role is zero.
func (c *Client) Users(ctx context.Context, role user.Role) ([]Record, error) {
	var query map[string]string
	if role.Valid() {
		query = map[string]string{"role": role.String()}
	}
	return c.getList(ctx, "/auth/users", query)
}

// Classes

func (c *Client) Classes(ctx context.Context, page Page) ([]Record, error) {
	return c.getList(ctx, "/classes", page.query())
}

func (c *Client) Class(ctx context.Context, id string) (Record, error) {
	return c.getRecord(ctx, "/classes/"+escape(id))
}

func (c *Client) CreateClass(ctx context.Context, data interface{}) error {
	return errors.Wrap(c.Post(ctx, "/classes", &Options{Body: data}, nil), "creating class")
}

func (c *Client) Subjects(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/subjects", nil)
}

// Assessment

func (c *Client) Exams(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/exams", nil)
}

func (c *Client) ExamScores(ctx context.Context, examID string) ([]Record, error) {
	return c.getList(ctx, "/score/examScores", map[string]string{"examId": examID})
}

func (c *Client) AddScore(ctx context.Context, data interface{}) error {
	return errors.Wrap(c.Post(ctx, "/score/addScore", &Options{Body: data}, nil), "adding score")
}

func (c *Client) Marks(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/score/marks", nil)
}

func (c *Client) Marksheets(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/result/marksheet", nil)
}

// Attendance lists attendance records; for students the backend scopes them to the caller.
func (c *Client) Attendance(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/attendance", nil)
}

func (c *Client) Recommendations(ctx context.Context, userID string) ([]Record, error) {
	return c.getList(ctx, "/ai/recommendation/"+escape(userID), nil)
}
