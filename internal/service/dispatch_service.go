package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/pkg/config"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

// DispatchState is the position of a request in the dispatch state machine.
type DispatchState int

const (
	StateIdle DispatchState = iota
	StateModelDetected
	StateObjectDetected
	StateFieldsDetected
	StateActionDispatched
	StateResponseReady
)

func (s DispatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateModelDetected:
		return "model_detected"
	case StateObjectDetected:
		return "object_detected"
	case StateFieldsDetected:
		return "fields_detected"
	case StateActionDispatched:
		return "action_dispatched"
	case StateResponseReady:
		return "response_ready"
	default:
		return fmt.Sprintf("DispatchState(%d)", int(s))
	}
}

// Dispatch actions.
const (
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AuditWriter persists the change ledger of successful writes.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DispatchResult is the outcome of one dispatch. Attachment is set when a
// listing was exported and replaces the JSON reply.
type DispatchResult struct {
	Response   dto.DispatchResponse
	Attachment *Attachment
	State      DispatchState
	CacheHit   bool
}

// DispatchService sequences detection, action and response for dispatch
// requests.
type DispatchService struct {
	cfg      config.DispatchConfig
	registry *SchemaRegistry
	store    RecordStore
	filter   *FilterEngine
	objects  *ObjectResolver
	related  *RelatedResolver
	gate     *FieldGate
	renderer Renderer
	audit    AuditWriter
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDispatchService wires the dispatcher. A nil renderer selects the
// default renderer; audit, cache and metrics are optional.
func NewDispatchService(cfg config.DispatchConfig, registry *SchemaRegistry, store RecordStore, renderer Renderer, audit AuditWriter, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = config.Defaults().Dispatch.MaxDepth
	}
	filter := NewFilterEngine(cfg, logger)
	gate := NewFieldGate(cfg)
	if renderer == nil {
		renderer = NewDefaultRenderer(gate, cfg.RemoveNewlines, logger)
	}
	return &DispatchService{
		cfg:      cfg,
		registry: registry,
		store:    store,
		filter:   filter,
		objects:  NewObjectResolver(filter, logger),
		related:  NewRelatedResolver(cfg, filter, logger),
		gate:     gate,
		renderer: renderer,
		audit:    audit,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// Filter exposes the filter engine.
func (svc *DispatchService) Filter() *FilterEngine {
	return svc.filter
}

// dispatch is the per-request state of the orchestrator.
type dispatch struct {
	svc   *DispatchService
	s     *Session
	state DispatchState

	action    string
	format    string
	editable  bool
	add       bool
	schema    *models.Schema
	handle    *ObjectHandle
	fields    []string
	functions []string
}

// Dispatch handles one request. Detection and action failures never
// escape: they become messages and a failure status on the reply.
func (svc *DispatchService) Dispatch(ctx context.Context, req *RequestContext) *DispatchResult {
	if len(req.Sources) == 0 {
		req.Sources = svc.cfg.DataSources
	}
	action, ok := actionFor(req.Method)
	cacheKey := svc.cacheKey(req, action)
	if cacheKey != "" {
		var cached dto.DispatchResponse
		if hit, _ := svc.cache.Get(ctx, cacheKey, &cached); hit {
			return &DispatchResult{Response: cached, State: StateResponseReady, CacheHit: true}
		}
	}

	d := &dispatch{
		svc:    svc,
		s:      NewSession(ctx, req, svc.store, svc.registry),
		action: action,
		format: strings.ToLower(strings.TrimSpace(req.Value(ParamFormat))),
	}
	if d.format == "" {
		d.format = FormatHTML
	}

	var (
		payload    interface{}
		attachment *Attachment
	)
	if !ok {
		d.s.Messages.Error(fmt.Sprintf("method '%s' is not supported", req.Method))
		d.s.Fail(http.StatusMethodNotAllowed)
		d.state = StateResponseReady
	} else if d.detect() {
		d.state = StateActionDispatched
		switch action {
		case ActionUpdate:
			payload, attachment = d.update()
		case ActionDelete:
			payload = d.delete()
		default:
			payload, attachment = d.read()
		}
		d.state = StateResponseReady
	}

	result := &DispatchResult{Response: d.response(payload), Attachment: attachment, State: d.state}
	model := ""
	if d.schema != nil {
		model = d.schema.Name
	}
	svc.metrics.RecordDispatch(model, action, result.Response.Status)

	if cacheKey != "" && attachment == nil && result.Response.Status == http.StatusOK {
		_ = svc.cache.Set(ctx, cacheKey, result.Response, 0)
	}
	return result
}

func actionFor(method string) (string, bool) {
	switch strings.ToUpper(method) {
	case "", http.MethodGet, http.MethodHead:
		return ActionRead, true
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	}
	return "", false
}

// cacheKey returns the read cache key, or "" when the reply must not be
// cached: writes, authenticated or debug requests and requests that pass
// dispatch parameters through headers.
func (svc *DispatchService) cacheKey(req *RequestContext, action string) string {
	if !svc.cache.Enabled() || action != ActionRead || svc.cfg.Debug || req.Actor.Authenticated() || req.HasBody() {
		return ""
	}
	for name := range svc.filter.reserved {
		if req.Headers != nil && len(req.Headers.Values(name)) > 0 {
			return ""
		}
	}
	schema, err := svc.registry.Resolve(req.Value(ParamModel))
	if err != nil {
		return ""
	}
	params := map[string][]string{}
	for source, values := range req.ParamsBySource() {
		for k, v := range values {
			params[source+"."+k] = v
		}
	}
	return ReadKey(schema.Name, params)
}

func (d *dispatch) detect() bool {
	req := d.s.Request
	schema, err := d.svc.registry.Resolve(req.Value(ParamModel))
	if err != nil {
		d.detectFailed("model", err)
		return false
	}
	d.schema = schema
	d.state = StateModelDetected

	d.editable = req.Mode(ModeEditable)
	d.add = req.Mode(ModeAdd)

	ids, err := d.svc.objects.Identifiers(d.s, schema)
	if err != nil {
		d.detectFailed("object", err)
		return false
	}
	if ids != nil {
		rec, err := d.svc.objects.Resolve(d.s, schema, ids)
		if err != nil {
			d.detectFailed("object", err)
			return false
		}
		d.handle = NewObjectHandle(schema, rec)
	}
	d.state = StateObjectDetected

	if !d.detectFields() {
		return false
	}
	d.state = StateFieldsDetected
	return true
}

func (d *dispatch) detectFields() bool {
	var names []string
	seen := map[string]struct{}{}
	for _, raw := range d.s.Request.GetAll(ParamField) {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	if len(names) == 1 && names[0] == AllFieldsSentinel && d.s.Request.Actor.Privileged() {
		names = d.allFieldNames()
	}

	var unknown []string
	for _, name := range names {
		switch {
		case d.schema.HasField(name):
			d.fields = append(d.fields, name)
		case hasProperty(d.schema, name):
			d.fields = append(d.fields, name)
		case hasFunction(d.schema, name):
			d.functions = append(d.functions, name)
		default:
			unknown = append(unknown, name)
		}
	}

	// Requested fields that all fail to resolve end the request instead of
	// falling back to the whole object.
	if len(names) > 0 && len(d.fields)+len(d.functions) == 0 {
		for _, name := range unknown {
			d.fieldFailed(name, appErrors.Clonef(appErrors.ErrNotFound, "field '%s' not found on '%s'", name, d.schema.Name), http.StatusBadRequest)
		}
		d.state = StateResponseReady
		d.svc.metrics.RecordDetectionFailure("field")
		return false
	}
	for _, name := range unknown {
		d.s.Messages.Warning(fmt.Sprintf("field '%s' not found on '%s'", name, d.schema.Name))
		d.svc.logger.Debug("field skipped", zap.String("schema", d.schema.Name), zap.String("field", name))
	}
	if d.handle != nil {
		d.handle.Fields = d.fields
		d.handle.Functions = d.functions
	}
	return true
}

func (d *dispatch) allFieldNames() []string {
	var names []string
	for _, field := range d.schema.Fields {
		if d.svc.gate.Check(d.schema, field.Name) == nil {
			names = append(names, field.Name)
		}
	}
	for _, fn := range d.schema.Functions {
		if fn.AjaxCallable {
			names = append(names, fn.Name)
		}
	}
	return names
}

func hasProperty(schema *models.Schema, name string) bool {
	_, ok := schema.Property(name)
	return ok
}

func hasFunction(schema *models.Schema, name string) bool {
	_, ok := schema.Function(name)
	return ok
}

// category returns the generic message shown for an error class.
func category(err *appErrors.Error) string {
	switch err.Code {
	case appErrors.ErrNotFound.Code:
		return "the requested content could not be found"
	case appErrors.ErrPermissionDenied.Code:
		return "you do not have permission to access the requested content"
	case appErrors.ErrForbidden.Code, appErrors.ErrUnauthorized.Code:
		return "you are not allowed to do this"
	case appErrors.ErrAmbiguous.Code:
		return "the request matches more than one item"
	case appErrors.ErrValidation.Code, appErrors.ErrCast.Code, appErrors.ErrInvalidChoice.Code:
		return "the request is invalid"
	case appErrors.ErrRecursionLimit.Code:
		return "the request is nested too deeply"
	case appErrors.ErrUnsupportedFieldType.Code:
		return "this field cannot be handled"
	default:
		return "an error occurred"
	}
}

// userMessage is the generic category, with the error text appended for
// privileged actors and in debug mode.
func (d *dispatch) userMessage(err error) string {
	appErr := appErrors.FromError(err)
	text := category(appErr)
	if d.s.Request.Actor.Privileged() || d.svc.cfg.Debug {
		text = fmt.Sprintf("%s: %s", text, appErr.Error())
	}
	return text
}

func (d *dispatch) detectFailed(stage string, err error) {
	d.s.Messages.Error(d.userMessage(err))
	d.s.Fail(http.StatusBadRequest)
	d.state = StateResponseReady
	d.svc.metrics.RecordDetectionFailure(stage)
	fields := []zap.Field{zap.String("stage", stage), zap.Error(err)}
	if d.schema != nil {
		fields = append(fields, zap.String("schema", d.schema.Name))
	}
	d.svc.logger.Debug("detection failed", fields...)
}

// actionFailed reports an error that stops the current action.
func (d *dispatch) actionFailed(err error) {
	appErr := appErrors.FromError(err)
	d.s.Messages.Error(d.userMessage(err))
	status := appErr.Status
	if status == 0 || status == http.StatusOK {
		status = http.StatusBadRequest
	}
	d.s.Fail(status)
	if appErr.Code == appErrors.ErrInternal.Code {
		d.svc.logger.Error("dispatch action failed", zap.String("schema", d.schema.Name), zap.String("action", d.action), zap.Error(err))
		return
	}
	d.svc.logger.Debug("dispatch action refused", zap.String("schema", d.schema.Name), zap.String("action", d.action), zap.Error(err))
}

// fieldFailed reports an error of one field; siblings continue.
func (d *dispatch) fieldFailed(name string, err error, status int) {
	d.s.Messages.Error(fmt.Sprintf("%s (field '%s')", d.userMessage(err), name))
	if status != 0 {
		d.s.Fail(status)
	}
	d.svc.logger.Debug("field failed", zap.String("schema", d.schema.Name), zap.String("field", name), zap.Error(err))
}

func (d *dispatch) read() (interface{}, *Attachment) {
	s := d.s
	if len(d.fields)+len(d.functions) > 0 {
		if d.handle == nil {
			d.actionFailed(appErrors.Clonef(appErrors.ErrValidation, "fields of '%s' can only be read from a selected object", d.schema.Name))
			return nil, nil
		}
		out := make(map[string]interface{}, len(d.fields)+len(d.functions))
		for _, name := range append(append([]string(nil), d.fields...), d.functions...) {
			desc, err := d.svc.gate.Attach(d.schema, d.handle.Record, name)
			if err != nil {
				d.fieldFailed(name, err, 0)
				continue
			}
			value, err := d.svc.renderer.RenderField(s, desc, d.format)
			if err != nil {
				d.fieldFailed(name, err, 0)
				continue
			}
			out[name] = value
		}
		return out, nil
	}

	if d.handle != nil && !d.handle.Record.IsNew() {
		payload, err := d.svc.renderer.RenderObject(s, d.handle, d.format)
		if err != nil {
			d.actionFailed(err)
			return nil, nil
		}
		return payload, nil
	}

	all, err := s.Snapshot.All(d.schema)
	if err != nil {
		d.actionFailed(err)
		return nil, nil
	}
	visible, err := d.svc.filter.Filter(s, all, FilterOptions{AllowPrivileged: true})
	if err != nil {
		d.actionFailed(err)
		return nil, nil
	}
	payload, err := d.svc.renderer.RenderModel(s, visible, d.format)
	if err != nil {
		d.actionFailed(err)
		return nil, nil
	}
	if attachment, ok := payload.(*Attachment); ok {
		return nil, attachment
	}
	return payload, nil
}

// authorizeWrite requires an authenticated actor that owns the record or
// is privileged.
func (d *dispatch) authorizeWrite() error {
	actor := d.s.Request.Actor
	if !actor.Authenticated() {
		return appErrors.Clone(appErrors.ErrForbidden, "you need to be logged in to change content")
	}
	if d.handle == nil || d.handle.Record.IsNew() || actor.Privileged() {
		return nil
	}
	if owner, ok := d.handle.Record.Ref(models.FieldOwner); ok && owner != actor.ID {
		return appErrors.Clonef(appErrors.ErrForbidden, "you are not allowed to change this '%s'", d.schema.Name)
	}
	return nil
}

type updateTarget struct {
	desc    *FieldDescriptor
	value   interface{}
	present bool
}

func (d *dispatch) update() (interface{}, *Attachment) {
	s := d.s
	if err := d.authorizeWrite(); err != nil {
		d.actionFailed(err)
		return nil, nil
	}
	created := false
	if d.handle == nil {
		if !d.add {
			d.actionFailed(appErrors.Clonef(appErrors.ErrValidation, "no '%s' selected; use the add mode to create one", d.schema.Name))
			return nil, nil
		}
		d.handle = NewObjectHandle(d.schema, nil)
		d.handle.Fields, d.handle.Functions = d.fields, d.functions
		created = true
	}

	payload := d.buildPayload()
	names := d.updateNames(payload)
	if len(names) == 0 {
		d.actionFailed(appErrors.Clonef(appErrors.ErrValidation, "nothing to update on '%s'", d.schema.Name))
		return nil, nil
	}

	var simple, foreign, related []updateTarget
	for _, name := range names {
		desc, err := d.svc.gate.Attach(d.schema, d.handle.Record, name)
		if err != nil {
			d.fieldFailed(name, err, appErrors.FromError(err).Status)
			continue
		}
		kind, err := desc.Kind()
		if err != nil {
			d.fieldFailed(name, err, http.StatusBadRequest)
			continue
		}
		value, present := payload[name]
		if !present && kind != models.FieldKindBool {
			s.Messages.Debug(fmt.Sprintf("no value given for field '%s'", name))
			continue
		}
		target := updateTarget{desc: desc, value: value, present: present}
		switch kind {
		case models.FieldKindSimple, models.FieldKindBool:
			simple = append(simple, target)
		case models.FieldKindForeignKey:
			foreign = append(foreign, target)
		case models.FieldKindManyRelation:
			related = append(related, target)
		}
	}

	for _, t := range simple {
		var err error
		if t.desc.IsBool() {
			var raw *string
			if t.present {
				if v := models.FormatValue(firstValue(t.value)); strings.TrimSpace(v) != "" {
					raw = &v
				}
			}
			_, err = t.desc.UpdateBool(s, d.handle, raw)
		} else {
			_, err = t.desc.UpdateSimple(s, d.handle, firstValue(t.value))
		}
		if err != nil {
			d.fieldFailed(t.desc.Name, err, http.StatusBadRequest)
		}
	}

	for _, t := range foreign {
		target, err := s.Snapshot.Schema(t.desc.Spec().Related)
		if err == nil {
			_, err = t.desc.UpdateForeignKey(s, d.handle, d.svc.related, IdentifiersFor(target, firstValue(t.value)))
		}
		if err != nil {
			d.fieldFailed(t.desc.Name, err, http.StatusBadRequest)
		}
	}

	if created {
		d.svc.related.ApplyDefaults(s, d.schema, d.handle.Record, "")
	}
	if created || d.handle.HasChanges() {
		if err := d.handle.Commit(s); err != nil {
			d.actionFailed(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "saving failed"))
			return nil, nil
		}
	}

	for _, t := range related {
		target, err := s.Snapshot.Schema(t.desc.Spec().Related)
		if err != nil {
			d.fieldFailed(t.desc.Name, err, http.StatusBadRequest)
			continue
		}
		for _, value := range allValues(t.value) {
			if _, err := t.desc.UpdateRelated(s, d.handle, d.svc.related, IdentifiersFor(target, value)); err != nil {
				d.fieldFailed(t.desc.Name, err, http.StatusBadRequest)
			}
		}
	}

	if created {
		s.Messages.Success(fmt.Sprintf("created new '%s' '%s'", d.schema.Name, s.Snapshot.Display(d.schema, d.handle.Record)))
	}
	if d.handle.HasChanges() {
		s.Messages.Success(d.handle.Summary(s.Snapshot.Display(d.schema, d.handle.Record)))
		action := models.AuditActionRecordUpdate
		if created {
			action = models.AuditActionRecordCreate
		}
		d.afterWrite(action)
	} else if created {
		d.afterWrite(models.AuditActionRecordCreate)
	}

	// the fresh state is rendered as an object view
	if len(d.fields) == 0 {
		payload, err := d.svc.renderer.RenderObject(s, d.handle, d.format)
		if err != nil {
			d.actionFailed(err)
			return nil, nil
		}
		return payload, nil
	}
	return d.read()
}

// buildPayload nests the body parameters on the path separator. GET
// parameters are included in debug mode.
func (d *dispatch) buildPayload() map[string]interface{} {
	req := d.s.Request
	out := map[string]interface{}{}
	var (
		shorthand    interface{}
		hasShorthand bool
	)
	add := func(key string, value interface{}) {
		if key == ParamValue {
			if !hasShorthand {
				shorthand, hasShorthand = value, true
			}
			return
		}
		if d.svc.filter.reservedKey(key) {
			return
		}
		if key == "" || strings.HasPrefix(key, PathSeparator) || strings.HasSuffix(key, PathSeparator) {
			d.s.Messages.Debug(fmt.Sprintf("malformed payload key '%s' skipped", key))
			return
		}
		parts := strings.Split(key, PathSeparator)
		if limit := d.svc.cfg.MaxDepth + 1; len(parts) > limit {
			parts = append(parts[:limit-1], strings.Join(parts[limit-1:], PathSeparator))
		}
		if !setNested(out, parts, value) {
			d.s.Messages.Debug(fmt.Sprintf("payload key '%s' conflicts with another key and was skipped", key))
		}
	}

	for _, k := range sortedKeys(req.JSON) {
		add(k, req.JSON[k])
	}
	for _, k := range sortedFormKeys(req.Form) {
		add(k, formValue(req.Form[k]))
	}
	if d.svc.cfg.Debug {
		for _, k := range sortedFormKeys(req.Query) {
			if _, exists := out[strings.Split(k, PathSeparator)[0]]; !exists {
				add(k, formValue(req.Query[k]))
			}
		}
	}

	if len(d.fields) == 1 && hasShorthand {
		if _, exists := out[d.fields[0]]; !exists {
			out[d.fields[0]] = shorthand
		}
	}
	return out
}

// updateNames lists the requested fields first, then payload keys.
func (d *dispatch) updateNames(payload map[string]interface{}) []string {
	names := append([]string(nil), d.fields...)
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		seen[name] = struct{}{}
	}
	for _, key := range sortedKeys(payload) {
		if _, dup := seen[key]; !dup {
			names = append(names, key)
		}
	}
	return names
}

func (d *dispatch) delete() interface{} {
	s := d.s
	if d.handle == nil {
		d.actionFailed(appErrors.Clonef(appErrors.ErrValidation, "no '%s' selected to delete", d.schema.Name))
		return nil
	}
	if err := d.authorizeWrite(); err != nil {
		d.actionFailed(err)
		return nil
	}
	field, ok := d.schema.Field(models.FieldStatus)
	if !ok {
		d.actionFailed(appErrors.Clonef(appErrors.ErrValidation, "'%s' records cannot be deleted", d.schema.Name))
		return nil
	}

	rec := d.handle.Record
	display := s.Snapshot.Display(d.schema, rec)
	old := rec.String(models.FieldStatus)
	if old == models.StatusDeleted {
		s.Messages.Info(fmt.Sprintf("'%s' '%s' is already deleted", d.schema.Name, display))
		return map[string]interface{}{"id": rec.ID, models.FieldStatus: models.StatusDeleted}
	}
	rec.Set(models.FieldStatus, models.StatusDeleted)
	d.handle.ReportChange(models.Change{
		Field:    models.FieldStatus,
		OldValue: field.Label(old),
		NewValue: field.Label(models.StatusDeleted),
	})
	if err := d.handle.Commit(s); err != nil {
		d.actionFailed(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "deleting failed"))
		return nil
	}
	s.Messages.Success(fmt.Sprintf("'%s' '%s' deleted", d.schema.Name, display))
	d.afterWrite(models.AuditActionRecordDelete)
	return map[string]interface{}{"id": rec.ID, models.FieldStatus: models.StatusDeleted}
}

// afterWrite records the ledger in the audit trail and drops cached reads.
// Failures are logged only; the write itself succeeded.
func (d *dispatch) afterWrite(action string) {
	ctx := d.s.Context()
	changes := d.handle.Changes()
	d.svc.metrics.RecordChanges(len(changes))

	if d.svc.audit != nil {
		body, err := json.Marshal(changes)
		if err != nil {
			d.svc.logger.Warn("marshal ledger", zap.Error(err))
		}
		entry := &models.AuditLog{
			Action:    action,
			Resource:  d.schema.Name,
			Changes:   body,
			IPAddress: d.s.Request.RemoteIP,
			UserAgent: d.s.Request.UserAgent,
		}
		if actor := d.s.Request.Actor; actor.Authenticated() {
			id := actor.ID
			entry.UserID = &id
		}
		if id := d.handle.Record.ID; id != 0 {
			entry.ResourceID = &id
		}
		if err := d.svc.audit.CreateAuditLog(ctx, entry); err != nil {
			d.svc.logger.Warn("audit log failed", zap.String("schema", d.schema.Name), zap.Error(err))
		}
	}
	_ = d.svc.cache.InvalidateModel(ctx, d.schema.Name)
	for _, name := range d.s.Snapshot.Written() {
		if name != d.schema.Name {
			_ = d.svc.cache.InvalidateModel(ctx, name)
		}
	}
}

func (d *dispatch) response(payload interface{}) dto.DispatchResponse {
	actor := d.s.Request.Actor
	showDebug := d.svc.cfg.Debug || actor.Privileged()
	resp := dto.DispatchResponse{
		Status:   d.s.Status,
		Messages: d.s.Messages.Output(showDebug),
		Payload:  payload,
	}
	if actor.Privileged() {
		resp.Meta = d.meta()
	}
	return resp
}

func (d *dispatch) meta() *dto.DispatchMeta {
	req := d.s.Request
	meta := &dto.DispatchMeta{
		Fields:      append([]string{}, d.fields...),
		Functions:   append([]string{}, d.functions...),
		Mode:        dto.ModeMeta{Editable: d.editable, Add: d.add},
		Debug:       d.svc.cfg.Debug,
		RequestUser: req.Actor,
		Request: dto.RequestMeta{
			Path:    req.Path,
			Method:  req.Method,
			Handler: req.Handler,
			Params:  req.ParamsBySource(),
		},
	}
	if d.schema != nil {
		meta.Model = d.schema.QualifiedName()
		if d.handle != nil && !d.handle.Record.IsNew() {
			meta.Object = &dto.ObjectMeta{ID: d.handle.Record.ID, Display: d.s.Snapshot.Display(d.schema, d.handle.Record)}
		}
	}
	return meta
}

// setNested stores value under parts, creating maps on the way. It refuses
// to overwrite a scalar with a map or the other way round.
func setNested(out map[string]interface{}, parts []string, value interface{}) bool {
	current := out
	for i, part := range parts {
		if i == len(parts)-1 {
			if existing, ok := current[part]; ok {
				if _, isMap := existing.(map[string]interface{}); isMap {
					return false
				}
			}
			current[part] = value
			return true
		}
		next, ok := current[part]
		if !ok {
			m := map[string]interface{}{}
			current[part] = m
			current = m
			continue
		}
		m, isMap := next.(map[string]interface{})
		if !isMap {
			return false
		}
		current = m
	}
	return true
}

func formValue(values []string) interface{} {
	if len(values) == 1 {
		return values[0]
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// firstValue unwraps list input for single valued fields.
func firstValue(v interface{}) interface{} {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

// allValues expands list input for many-relations.
func allValues(v interface{}) []interface{} {
	switch typed := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return typed
	case string:
		var out []interface{}
		for _, part := range strings.Split(typed, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return []interface{}{typed}
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFormKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
