package grpcproto

import (
	"errors"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/S0me0neR0man/jobstash/internal/jobs"
)

// Field names. uint64 values travel as decimal strings because struct
// numbers are float64.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldSkills      = "skills_required"
	FieldCreatedAt   = "created_at"
	FieldFrom        = "from"
	FieldLimit       = "limit"
	FieldJobs        = "jobs"
	FieldTotal       = "total"
)

var ErrBadMessage = errors.New("grpcproto: malformed message")

func JobToStruct(j jobs.Job) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID:          uintValue(j.ID),
		FieldTitle:       structpb.NewStringValue(j.Title),
		FieldDescription: structpb.NewStringValue(j.Description),
		FieldSkills:      stringsValue(j.SkillsRequired),
		FieldCreatedAt:   uintValue(j.CreatedAt),
	}}
}

func JobFromStruct(s *structpb.Struct) (jobs.Job, error) {
	var (
		j   jobs.Job
		err error
	)
	if j.ID, _, err = getUint(s, FieldID); err != nil {
		return jobs.Job{}, err
	}
	if j.Title, _, err = getString(s, FieldTitle); err != nil {
		return jobs.Job{}, err
	}
	if j.Description, _, err = getString(s, FieldDescription); err != nil {
		return jobs.Job{}, err
	}
	if j.SkillsRequired, _, err = getStrings(s, FieldSkills); err != nil {
		return jobs.Job{}, err
	}
	if j.CreatedAt, _, err = getUint(s, FieldCreatedAt); err != nil {
		return jobs.Job{}, err
	}
	return j, nil
}

func PayloadToStruct(p jobs.JobPayload) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldTitle:       structpb.NewStringValue(p.Title),
		FieldDescription: structpb.NewStringValue(p.Description),
		FieldSkills:      stringsValue(p.SkillsRequired),
	}}
}

func PayloadFromStruct(s *structpb.Struct) (jobs.JobPayload, error) {
	var (
		p   jobs.JobPayload
		err error
	)
	if p.Title, _, err = getString(s, FieldTitle); err != nil {
		return p, err
	}
	if p.Description, _, err = getString(s, FieldDescription); err != nil {
		return p, err
	}
	if p.SkillsRequired, _, err = getStrings(s, FieldSkills); err != nil {
		return p, err
	}
	return p, nil
}

// UpdateToStruct encodes only the fields u changes.
func UpdateToStruct(id uint64, u jobs.JobUpdate) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{FieldID: uintValue(id)}}
	if u.Title != nil {
		s.Fields[FieldTitle] = structpb.NewStringValue(*u.Title)
	}
	if u.Description != nil {
		s.Fields[FieldDescription] = structpb.NewStringValue(*u.Description)
	}
	if u.SkillsRequired != nil {
		s.Fields[FieldSkills] = stringsValue(u.SkillsRequired)
	}
	return s
}

func UpdateFromStruct(s *structpb.Struct) (uint64, jobs.JobUpdate, error) {
	var u jobs.JobUpdate
	id, ok, err := getUint(s, FieldID)
	if err != nil {
		return 0, u, err
	}
	if !ok {
		return 0, u, fmt.Errorf("%w: %s is required", ErrBadMessage, FieldID)
	}

	if v, ok, err := getString(s, FieldTitle); err != nil {
		return 0, u, err
	} else if ok {
		u.Title = &v
	}
	if v, ok, err := getString(s, FieldDescription); err != nil {
		return 0, u, err
	} else if ok {
		u.Description = &v
	}
	skills, ok, err := getStrings(s, FieldSkills)
	if err != nil {
		return 0, u, err
	}
	if ok {
		u.SkillsRequired = skills
		if u.SkillsRequired == nil {
			u.SkillsRequired = []string{}
		}
	}
	return id, u, nil
}

func ListRequestToStruct(from uint64, limit int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldFrom:  uintValue(from),
		FieldLimit: structpb.NewNumberValue(float64(limit)),
	}}
}

func ListRequestFromStruct(s *structpb.Struct) (uint64, int, error) {
	from, _, err := getUint(s, FieldFrom)
	if err != nil {
		return 0, 0, err
	}
	var limit int
	if v, ok := s.GetFields()[FieldLimit]; ok {
		n, isNum := v.GetKind().(*structpb.Value_NumberValue)
		if !isNum || n.NumberValue < 0 || n.NumberValue != float64(int(n.NumberValue)) {
			return 0, 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadMessage, FieldLimit)
		}
		limit = int(n.NumberValue)
	}
	return from, limit, nil
}

func ListToStruct(list []jobs.Job, total uint64) *structpb.Struct {
	values := make([]*structpb.Value, len(list))
	for i, j := range list {
		values[i] = structpb.NewStructValue(JobToStruct(j))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldJobs:  structpb.NewListValue(&structpb.ListValue{Values: values}),
		FieldTotal: uintValue(total),
	}}
}

func ListFromStruct(s *structpb.Struct) ([]jobs.Job, uint64, error) {
	total, _, err := getUint(s, FieldTotal)
	if err != nil {
		return nil, 0, err
	}
	v, ok := s.GetFields()[FieldJobs]
	if !ok {
		return nil, total, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, 0, fmt.Errorf("%w: %s must be a list", ErrBadMessage, FieldJobs)
	}
	res := make([]jobs.Job, 0, len(list.Values))
	for _, item := range list.Values {
		js := item.GetStructValue()
		if js == nil {
			return nil, 0, fmt.Errorf("%w: %s must hold objects", ErrBadMessage, FieldJobs)
		}
		j, err := JobFromStruct(js)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, j)
	}
	return res, total, nil
}

func uintValue(v uint64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatUint(v, 10))
}

func stringsValue(s []string) *structpb.Value {
	values := make([]*structpb.Value, len(s))
	for i, v := range s {
		values[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func getString(s *structpb.Struct, name string) (string, bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", false, nil
	}
	str, isStr := v.GetKind().(*structpb.Value_StringValue)
	if !isStr {
		return "", false, fmt.Errorf("%w: %s must be a string", ErrBadMessage, name)
	}
	return str.StringValue, true, nil
}

func getUint(s *structpb.Struct, name string) (uint64, bool, error) {
	str, ok, err := getString(s, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrBadMessage, name, err)
	}
	return v, true, nil
}

// getStrings returns nil for an empty list.
func getStrings(s *structpb.Struct, name string) ([]string, bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil, false, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, false, fmt.Errorf("%w: %s must be a list", ErrBadMessage, name)
	}
	var res []string
	for _, item := range list.Values {
		str, isStr := item.GetKind().(*structpb.Value_StringValue)
		if !isStr {
			return nil, false, fmt.Errorf("%w: %s must hold strings", ErrBadMessage, name)
		}
		res = append(res, str.StringValue)
	}
	return res, true, nil
}
