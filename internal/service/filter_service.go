package service

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

// credentialFields can never be used to search or exclude.
var credentialFields = []string{
	"password", "secret_key", "api_key", "token", "access_token",
	"refresh_token", "private_key", "certificate",
}

// FilterOptions tunes a Filter call.
type FilterOptions struct {
	SuppressSearch  bool
	AllowPrivileged bool
}

// FilterEngine narrows collections to what the acting actor may see and to
// what the request searches for.
type FilterEngine struct {
	cfg      config.DispatchConfig
	logger   *zap.Logger
	blocked  map[string]struct{}
	reserved map[string]struct{}
}

// NewFilterEngine constructs a filter engine.
func NewFilterEngine(cfg config.DispatchConfig, logger *zap.Logger) *FilterEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	blocked := make(map[string]struct{})
	for _, name := range credentialFields {
		blocked[name] = struct{}{}
	}
	for _, name := range cfg.SearchBlockedFields {
		blocked[strings.ToLower(name)] = struct{}{}
	}
	reserved := map[string]struct{}{
		ParamModel: {}, ParamField: {}, ParamFormat: {}, ParamMode: {}, ParamValue: {},
		ModeEditable: {}, ModeAdd: {}, "csrfmiddlewaretoken": {}, "page": {},
		cfg.SearchQueryParam: {}, cfg.SearchExcludeParam: {},
	}
	for _, aliases := range identifierAliases {
		for _, alias := range aliases.keys {
			reserved[alias] = struct{}{}
		}
	}
	return &FilterEngine{cfg: cfg, logger: logger, blocked: blocked, reserved: reserved}
}

// Filter applies ownership, status, visibility and, unless suppressed, the
// search passes in that order.
func (f *FilterEngine) Filter(s *Session, coll Collection, opts FilterOptions) (Collection, error) {
	coll = f.RestrictByOwnership(s, coll)
	coll = f.FilterStatus(s, coll, opts.AllowPrivileged)
	coll, err := f.FilterVisibility(s, coll, opts.AllowPrivileged)
	if err != nil {
		return coll.Empty(), err
	}
	if opts.SuppressSearch {
		return coll, nil
	}
	return f.Search(s, coll)
}

// RestrictByOwnership keeps only the actor's own records when the schema
// restricts read access to owners. Anonymous actors get nothing and a 403.
func (f *FilterEngine) RestrictByOwnership(s *Session, coll Collection) Collection {
	if coll.Schema.RestrictReadAccess != models.RestrictOwner {
		return coll
	}
	actor := s.Request.Actor
	if !actor.Authenticated() {
		s.Messages.Error("you need to be logged in to view this content")
		s.Fail(http.StatusForbidden)
		return coll.Empty()
	}
	return coll.Filter(func(rec *models.Record) bool {
		owner, ok := rec.Ref(models.FieldOwner)
		return ok && owner == actor.ID
	})
}

// FilterStatus keeps published records for non-privileged viewers.
func (f *FilterEngine) FilterStatus(s *Session, coll Collection, allowPrivileged bool) Collection {
	if !coll.Schema.HasField(models.FieldStatus) {
		return coll
	}
	if allowPrivileged && s.Request.Actor.Privileged() {
		return coll
	}
	return coll.Filter(func(rec *models.Record) bool {
		return f.statusOf(rec) == models.StatusPublished
	})
}

// FilterVisibility applies the public/community/family/private rules.
func (f *FilterEngine) FilterVisibility(s *Session, coll Collection, allowPrivileged bool) (Collection, error) {
	if !coll.Schema.HasField(models.FieldVisibility) {
		return coll, nil
	}
	actor := s.Request.Actor
	if allowPrivileged && actor.IsSuperuser {
		return coll, nil
	}
	if !actor.Authenticated() {
		return coll.Filter(func(rec *models.Record) bool {
			return f.visibilityOf(rec) == models.VisibilityPublic
		}), nil
	}

	own, err := f.families(s, actor.ID)
	if err != nil {
		return coll.Empty(), err
	}
	ownerFamilies := map[int64]map[int64]struct{}{}
	var lookupErr error
	out := coll.Filter(func(rec *models.Record) bool {
		owner, hasOwner := rec.Ref(models.FieldOwner)
		isOwner := hasOwner && owner == actor.ID
		switch f.visibilityOf(rec) {
		case models.VisibilityPublic, models.VisibilityCommunity:
			return true
		case models.VisibilityPrivate:
			return isOwner
		case models.VisibilityFamily:
			if isOwner {
				return true
			}
			if !hasOwner || len(own) == 0 {
				return false
			}
			theirs, ok := ownerFamilies[owner]
			if !ok {
				var err error
				theirs, err = f.families(s, owner)
				if err != nil {
					lookupErr = err
					return false
				}
				ownerFamilies[owner] = theirs
			}
			for id := range theirs {
				if _, shared := own[id]; shared {
					return true
				}
			}
			return false
		default:
			return false
		}
	})
	if lookupErr != nil {
		return coll.Empty(), lookupErr
	}
	return out, nil
}

// families returns the family ids of a user. The family attribute may be a
// foreign key or a many-relation.
func (f *FilterEngine) families(s *Session, userID int64) (map[int64]struct{}, error) {
	out := map[int64]struct{}{}
	userSchema, err := s.Snapshot.Schema(f.cfg.UserModel)
	if err != nil {
		return out, nil
	}
	field, ok := userSchema.Field(f.cfg.FamilyField)
	if !ok || !field.IsRelation() {
		return out, nil
	}
	user, err := s.Snapshot.Get(userSchema.Name, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return out, nil
	}
	switch field.Kind {
	case models.FieldKindForeignKey:
		if id, ok := user.Ref(field.Name); ok {
			out[id] = struct{}{}
		}
	case models.FieldKindManyRelation:
		for _, id := range user.RelatedIDs(field.Name) {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (f *FilterEngine) statusOf(rec *models.Record) string {
	if v := rec.String(models.FieldStatus); v != "" {
		return v
	}
	return f.cfg.DefaultModelStatus
}

func (f *FilterEngine) visibilityOf(rec *models.Record) string {
	if v := rec.String(models.FieldVisibility); v != "" {
		return v
	}
	return f.cfg.DefaultModelVisibility
}

// Search runs structured field search, free-text search and exclusion.
// Refused or failed searches queue a message and yield an empty collection.
func (f *FilterEngine) Search(s *Session, coll Collection) (Collection, error) {
	passes := []func(*Session, Collection) (Collection, error){
		f.searchFields,
		f.searchQuery,
		f.searchExclude,
	}
	var err error
	for _, pass := range passes {
		coll, err = pass(s, coll)
		if err != nil {
			return f.searchFailed(s, coll, err)
		}
	}
	return coll, nil
}

func (f *FilterEngine) searchFailed(s *Session, coll Collection, err error) (Collection, error) {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrForbidden.Code:
		s.Messages.Error(appErr.Message)
	case appErrors.ErrInternal.Code:
		return coll.Empty(), err
	default:
		text := "an error occurred while searching"
		if s.Request.Actor.Privileged() || f.cfg.Debug {
			text = fmt.Sprintf("%s: %s", text, appErr.Error())
		}
		s.Messages.Error(text)
	}
	f.logger.Debug("search refused", zap.String("schema", coll.Schema.Name), zap.Error(err))
	s.Fail(http.StatusBadRequest)
	return coll.Empty(), nil
}

// checkSearchable refuses credential-like, configured and underscore
// prefixed names anywhere in a path.
func (f *FilterEngine) checkSearchable(path []string) error {
	for _, seg := range path {
		name := strings.ToLower(seg)
		_, blocked := f.blocked[name]
		if blocked || strings.HasPrefix(name, "_") {
			return appErrors.Clonef(appErrors.ErrForbidden, "field '%s' is not allowed for searching due to security reasons.", seg)
		}
	}
	return nil
}

func (f *FilterEngine) reservedKey(key string) bool {
	_, ok := f.reserved[key]
	return ok
}

func (f *FilterEngine) searchFields(s *Session, coll Collection) (Collection, error) {
	schema := coll.Schema
	for _, key := range s.Request.Keys() {
		if f.reservedKey(key) {
			continue
		}
		path := SplitPath(key)
		if !schema.HasField(path[0]) {
			fn, isFn := schema.Function(path[0])
			if !isFn || !fn.Searchable || len(path) != 1 {
				continue
			}
		}
		if err := f.checkSearchable(path); err != nil {
			return coll, err
		}
		if _, err := s.Snapshot.resolvePath(schema, path); err != nil {
			f.logger.Debug("search key skipped", zap.String("key", key), zap.Error(err))
			continue
		}
		values := splitValues(s.Request.Value(key))
		if len(values) == 0 {
			continue
		}

		paths := [][]string{path}
		if schema.HasSelfParent() && path[0] != models.FieldParent {
			paths = append(paths, append([]string{models.FieldParent}, path...))
		}
		var walkErr error
		coll = coll.Filter(func(rec *models.Record) bool {
			for _, p := range paths {
				found, err := s.Snapshot.PathValues(schema, rec, p, s.Request.Actor)
				if err != nil {
					walkErr = err
					return false
				}
				if containsAny(found, values) {
					return true
				}
			}
			return false
		})
		if walkErr != nil {
			return coll, walkErr
		}
	}
	return coll, nil
}

// parseQuery splits a free-text query into OR groups of AND terms.
func parseQuery(raw string) [][]string {
	q := strings.ToLower(raw)
	q = strings.NewReplacer("__and__", "&&", "__or__", "||", " and ", "&&", " or ", "||").Replace(q)
	var groups [][]string
	for _, group := range strings.Split(q, "||") {
		var terms []string
		for _, term := range strings.Split(group, "&&") {
			if term = strings.TrimSpace(term); term != "" {
				terms = append(terms, term)
			}
		}
		if len(terms) > 0 {
			groups = append(groups, terms)
		}
	}
	return groups
}

func (f *FilterEngine) searchQuery(s *Session, coll Collection) (Collection, error) {
	raw := strings.TrimSpace(s.Request.Value(f.cfg.SearchQueryParam))
	if raw == "" || len([]rune(raw)) < f.cfg.SearchMinLength {
		return coll, nil
	}
	groups := parseQuery(raw)
	if len(groups) == 0 {
		return coll, nil
	}

	all, err := s.Snapshot.All(coll.Schema)
	if err != nil {
		return coll, err
	}
	texts := map[*models.Record][]string{}
	var walkErr error
	textsOf := func(rec *models.Record) []string {
		if cached, ok := texts[rec]; ok {
			return cached
		}
		found, err := f.searchableTexts(s, coll.Schema, rec)
		if err != nil {
			walkErr = err
		}
		texts[rec] = found
		return found
	}

	var valid [][]string
	for _, group := range groups {
		matched := false
		for _, rec := range all.Records {
			if matchesTerms(textsOf(rec), group) {
				matched = true
				break
			}
		}
		if walkErr != nil {
			return coll, walkErr
		}
		if !matched {
			s.Messages.Debug(fmt.Sprintf("search group '%s' matches nothing and is ignored", strings.Join(group, " && ")))
			continue
		}
		valid = append(valid, group)
	}
	if len(valid) == 0 {
		return coll.Empty(), nil
	}

	out := coll.Filter(func(rec *models.Record) bool {
		for _, group := range valid {
			if matchesTerms(textsOf(rec), group) {
				return true
			}
		}
		return false
	})
	return out, walkErr
}

// searchableTexts gathers the lowercased text values a free-text query is
// matched against: the record's own text fields, those of its parent and
// those of records linked through many-relations.
func (f *FilterEngine) searchableTexts(s *Session, schema *models.Schema, rec *models.Record) ([]string, error) {
	out := f.textValues(schema, rec)
	for _, field := range schema.Fields {
		switch {
		case field.Name == models.FieldParent && schema.HasSelfParent():
		case field.Kind == models.FieldKindManyRelation:
		default:
			continue
		}
		if f.checkSearchable([]string{field.Name}) != nil {
			continue
		}
		target, err := s.Snapshot.Schema(field.Related)
		if err != nil {
			return nil, err
		}
		related, err := s.Snapshot.Related(rec, field)
		if err != nil {
			return nil, err
		}
		for _, other := range related {
			out = append(out, f.textValues(target, other)...)
		}
	}
	return out, nil
}

func (f *FilterEngine) textValues(schema *models.Schema, rec *models.Record) []string {
	var out []string
	for _, field := range schema.TextFields() {
		if f.checkSearchable([]string{field.Name}) != nil {
			continue
		}
		if v := rec.String(field.Name); v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

// matchesTerms reports whether a single text value contains every term of
// the group.
func matchesTerms(texts []string, terms []string) bool {
	for _, text := range texts {
		if containsAll(text, terms) {
			return true
		}
	}
	return false
}

func containsAll(text string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func (f *FilterEngine) searchExclude(s *Session, coll Collection) (Collection, error) {
	raw := s.Request.GetAll(f.cfg.SearchExcludeParam)
	if len(raw) == 0 {
		return coll, nil
	}
	joined := strings.ReplaceAll(strings.Join(raw, ","), ";", ",")
	schema := coll.Schema

	for _, part := range strings.Split(joined, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value := part, "true"
		if idx := strings.Index(part, ":"); idx >= 0 {
			key, value = strings.TrimSpace(part[:idx]), strings.TrimSpace(part[idx+1:])
		}
		path := SplitPath(key)
		if err := f.checkSearchable(path); err != nil {
			return coll, err
		}
		target, err := s.Snapshot.resolvePath(schema, path)
		if err != nil {
			f.logger.Debug("exclude key skipped", zap.String("key", key), zap.Error(err))
			s.Messages.Debug(fmt.Sprintf("exclude key '%s' skipped", key))
			continue
		}

		var drop func(found []string) bool
		if target.function == nil && target.property == nil && (target.field.Kind == models.FieldKindBool || target.field.Type == models.TypeBool) {
			want, err := parseBool(value)
			if err != nil {
				f.logger.Debug("exclude value skipped", zap.String("key", key), zap.String("value", value))
				s.Messages.Debug(fmt.Sprintf("exclude value '%s' for '%s' is not a boolean", value, key))
				continue
			}
			drop = func(found []string) bool {
				for _, v := range found {
					if got, err := parseBool(v); err == nil && got == want {
						return true
					}
				}
				return false
			}
		} else {
			needle := []string{value}
			drop = func(found []string) bool { return containsAny(found, needle) }
		}

		var walkErr error
		coll = coll.Filter(func(rec *models.Record) bool {
			found, err := s.Snapshot.PathValues(schema, rec, path, s.Request.Actor)
			if err != nil {
				walkErr = err
				return false
			}
			return !drop(found)
		})
		if walkErr != nil {
			return coll, walkErr
		}
	}
	return coll, nil
}

func splitValues(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// containsAny reports whether any found value contains any needle,
// ignoring case.
func containsAny(found, needles []string) bool {
	for _, v := range found {
		lv := strings.ToLower(v)
		for _, n := range needles {
			if strings.Contains(lv, strings.ToLower(n)) {
				return true
			}
		}
	}
	return false
}
