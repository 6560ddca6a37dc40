// Package mock provides an in-memory DatoCMS Content Management API for tests.
package mock

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Token is the API token the fake server accepts
const Token = "test-api-token-0123456789"

// ItemType is a model or block known to the fake server
type ItemType struct {
	ID           string
	Name         string
	APIKey       string
	ModularBlock bool
	Fields       []Field
}

// Field is a field definition served by the fake server
type Field struct {
	ID         string
	APIKey     string
	Label      string
	FieldType  string
	Localized  bool
	Position   int
	Validators map[string]any
	Editor     string
}

// Record is a stored record
type Record struct {
	ID         string
	ItemType   string
	Attributes map[string]any
	Status     string
}

// Upload is a stored upload
type Upload struct {
	ID         string
	Filename   string
	MD5        string
	Size       int
	Collection string
}

// Call is one request received by the fake server
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
	At     time.Time
}

type failure struct {
	method string
	prefix string
	status int
	code   string
	times  int
}

// CMAServer is a fake Content Management API backed by memory
type CMAServer struct {
	*httptest.Server

	mu          sync.Mutex
	itemTypes   []*ItemType
	records     map[string]*Record
	order       []string
	uploads     map[string]*Upload
	uploadOrder []string
	collections map[string]string
	locales     []string
	requests    map[string]string // upload request path -> filename
	stored      map[string][]byte // storage path -> content
	jobs        map[string]map[string]any
	pendingJobs map[string]int
	files       map[string][]byte
	failures    []*failure
	calls       []Call
	nextID      int

	// FileDelay slows down remote file downloads so concurrency can be observed
	FileDelay   time.Duration
	fileDelays  map[string]time.Duration
	inFlight    int
	maxInFlight int
}

// NewCMAServer starts a fake server seeded with a product model,
// a gallery block and one upload collection.
func NewCMAServer() *CMAServer {
	s := &CMAServer{
		records:     make(map[string]*Record),
		uploads:     make(map[string]*Upload),
		collections: map[string]string{"col-1": "Product images"},
		locales:     []string{"en", "de"},
		requests:    make(map[string]string),
		stored:      make(map[string][]byte),
		jobs:        make(map[string]map[string]any),
		pendingJobs: make(map[string]int),
		files:       make(map[string][]byte),
		nextID:      1000,
	}
	s.itemTypes = []*ItemType{
		{
			ID:     "model-product",
			Name:   "Product",
			APIKey: "product",
			Fields: []Field{
				{ID: "f-title", APIKey: "title", Label: "Title", FieldType: "string", Position: 2,
					Validators: map[string]any{"required": map[string]any{}}},
				{ID: "f-sku", APIKey: "sku", Label: "SKU", FieldType: "string", Position: 1,
					Validators: map[string]any{"unique": map[string]any{}, "required": map[string]any{}}},
				{ID: "f-price", APIKey: "price", Label: "Price", FieldType: "float", Position: 3},
				{ID: "f-tags", APIKey: "tags", Label: "Tags", FieldType: "json", Position: 4, Editor: "string_checkbox_group"},
				{ID: "f-related", APIKey: "related", Label: "Related", FieldType: "links", Position: 5},
				{ID: "f-desc", APIKey: "description", Label: "Description", FieldType: "text", Localized: true, Position: 6},
				{ID: "f-status", APIKey: "stock_status", Label: "Stock status", FieldType: "string", Position: 7,
					Validators: map[string]any{"enum": map[string]any{"values": []any{"in_stock", "sold_out"}}}},
				{ID: "f-body", APIKey: "body", Label: "Body", FieldType: "structured_text", Position: 8},
			},
		},
		{
			ID:           "block-gallery",
			Name:         "Gallery block",
			APIKey:       "gallery_block",
			ModularBlock: true,
			Fields: []Field{
				{ID: "f-images", APIKey: "images", Label: "Images", FieldType: "gallery", Position: 1},
			},
		},
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddItemType registers another model or block
func (s *CMAServer) AddItemType(it *ItemType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemTypes = append(s.itemTypes, it)
}

// AddRecord stores a record and returns its ID
func (s *CMAServer) AddRecord(itemType string, attrs map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRecord(itemType, attrs)
}

func (s *CMAServer) addRecord(itemType string, attrs map[string]any) string {
	id := s.newID()
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	s.records[id] = &Record{ID: id, ItemType: itemType, Attributes: copied, Status: "draft"}
	s.order = append(s.order, id)
	return id
}

// AddUpload stores an upload with the given content and returns its ID
func (s *CMAServer) AddUpload(filename string, content []byte, collection string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := md5.Sum(content)
	id := s.newID()
	s.uploads[id] = &Upload{ID: id, Filename: filename, MD5: hex.EncodeToString(sum[:]), Size: len(content), Collection: collection}
	s.uploadOrder = append(s.uploadOrder, id)
	return id
}

// ServeFile makes content downloadable at URL()+"/files/"+name and returns that URL
func (s *CMAServer) ServeFile(name string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = content
	return s.URL + "/files/" + name
}

// DelayFile slows down downloads of one served file, overriding FileDelay
func (s *CMAServer) DelayFile(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileDelays == nil {
		s.fileDelays = make(map[string]time.Duration)
	}
	s.fileDelays[name] = d
}

// Record returns a stored record
func (s *CMAServer) Record(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

// RecordCount returns the number of stored records
func (s *CMAServer) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// UploadCount returns the number of stored uploads
func (s *CMAServer) UploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// Fail makes the next times requests whose method and path prefix match fail
// with status and a JSON:API error code.
func (s *CMAServer) Fail(method, pathPrefix string, status int, code string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, prefix: pathPrefix, status: status, code: code, times: times})
}

// Calls returns every request received so far
func (s *CMAServer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the requests matching method and path prefix
func (s *CMAServer) CallsTo(method, pathPrefix string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// MaxConcurrentDownloads returns the peak number of parallel file downloads
func (s *CMAServer) MaxConcurrentDownloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *CMAServer) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

var (
	itemPath        = regexp.MustCompile(`^/items/([^/]+)$`)
	itemActionPath  = regexp.MustCompile(`^/items/([^/]+)/(publish|unpublish)$`)
	itemTypePath    = regexp.MustCompile(`^/item-types/([^/]+)$`)
	fieldsPath      = regexp.MustCompile(`^/item-types/([^/]+)/fields$`)
	uploadPath      = regexp.MustCompile(`^/uploads/([^/]+)$`)
	jobPath         = regexp.MustCompile(`^/job-results/([^/]+)$`)
	filterFieldsKey = regexp.MustCompile(`^filter\[fields\]\[([^\]]+)\]\[([^\]]+)\]$`)
)

func (s *CMAServer) handle(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/files/") {
		s.serveFile(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/storage/") {
		s.store(w, r)
		return
	}

	var body map[string]any
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body, At: time.Now()})

	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeError(w, http.StatusUnauthorized, "INVALID_AUTHORIZATION_HEADER")
		return
	}
	if r.Header.Get("X-Api-Version") != "3" {
		writeError(w, http.StatusPreconditionFailed, "INVALID_API_VERSION")
		return
	}
	for _, f := range s.failures {
		if f.times > 0 && f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
			f.times--
			if f.status == http.StatusTooManyRequests {
				w.Header().Set("X-RateLimit-Reset", "0")
			}
			writeError(w, f.status, f.code)
			return
		}
	}

	p := r.URL.Path
	switch {
	case p == "/site" && r.Method == http.MethodGet:
		writeData(w, http.StatusOK, map[string]any{
			"id": "site-1", "type": "site",
			"attributes": map[string]any{"name": "Test site", "locales": s.locales, "internal_domain": "test.admin.datocms.com"},
		})
	case p == "/item-types" && r.Method == http.MethodGet:
		list := make([]any, 0, len(s.itemTypes))
		for _, it := range s.itemTypes {
			list = append(list, itemTypeResource(it))
		}
		writeList(w, list, len(list))
	case fieldsPath.MatchString(p) && r.Method == http.MethodGet:
		it := s.findItemType(fieldsPath.FindStringSubmatch(p)[1])
		if it == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		list := make([]any, 0, len(it.Fields))
		for _, f := range it.Fields {
			list = append(list, fieldResource(f))
		}
		writeList(w, list, len(list))
	case itemTypePath.MatchString(p) && r.Method == http.MethodGet:
		it := s.findItemType(itemTypePath.FindStringSubmatch(p)[1])
		if it == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		writeData(w, http.StatusOK, itemTypeResource(it))
	case p == "/items" && r.Method == http.MethodGet:
		s.listItems(w, r.URL.Query())
	case p == "/items" && r.Method == http.MethodPost:
		s.createItem(w, body)
	case itemActionPath.MatchString(p) && r.Method == http.MethodPut:
		m := itemActionPath.FindStringSubmatch(p)
		rec, ok := s.records[m[1]]
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		rec.Status = "published"
		if m[2] == "unpublish" {
			rec.Status = "draft"
		}
		writeData(w, http.StatusOK, recordResource(rec))
	case itemPath.MatchString(p):
		s.itemByID(w, r.Method, itemPath.FindStringSubmatch(p)[1], body)
	case p == "/upload-collections" && r.Method == http.MethodGet:
		ids := make([]string, 0, len(s.collections))
		for id := range s.collections {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		list := make([]any, 0, len(ids))
		for i, id := range ids {
			list = append(list, map[string]any{"id": id, "type": "upload_collection",
				"attributes": map[string]any{"label": s.collections[id], "position": i + 1}})
		}
		writeList(w, list, len(list))
	case p == "/upload-requests" && r.Method == http.MethodPost:
		filename, _ := dig(body, "data", "attributes", "filename").(string)
		path := fmt.Sprintf("/%s/%s", s.newID(), filename)
		s.requests[path] = filename
		writeData(w, http.StatusCreated, map[string]any{
			"id": path, "type": "upload_request",
			"attributes": map[string]any{
				"url":             s.URL + "/storage" + path,
				"request_headers": map[string]any{"Content-Type": "application/octet-stream"},
			},
		})
	case p == "/uploads" && r.Method == http.MethodPost:
		s.createUpload(w, body)
	case p == "/uploads" && r.Method == http.MethodGet:
		s.listUploads(w, r.URL.Query())
	case uploadPath.MatchString(p):
		id := uploadPath.FindStringSubmatch(p)[1]
		up, ok := s.uploads[id]
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeData(w, http.StatusOK, uploadResource(up))
		case http.MethodDelete:
			delete(s.uploads, id)
			writeData(w, http.StatusOK, uploadResource(up))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
		}
	case jobPath.MatchString(p) && r.Method == http.MethodGet:
		id := jobPath.FindStringSubmatch(p)[1]
		if s.pendingJobs[id] > 0 {
			s.pendingJobs[id]--
			writeError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		payload, ok := s.jobs[id]
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"id": id, "type": "job_result",
			"attributes": map[string]any{"status": 200, "payload": payload},
		})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND")
	}
}

func (s *CMAServer) findItemType(idOrKey string) *ItemType {
	for _, it := range s.itemTypes {
		if it.ID == idOrKey || it.APIKey == idOrKey {
			return it
		}
	}
	return nil
}

func (s *CMAServer) listItems(w http.ResponseWriter, q url.Values) {
	typeFilter := q.Get("filter[type]")
	var typeIDs map[string]bool
	if typeFilter != "" {
		typeIDs = make(map[string]bool)
		for _, t := range strings.Split(typeFilter, ",") {
			if it := s.findItemType(t); it != nil {
				typeIDs[it.ID] = true
			}
		}
	}

	var matched []*Record
	for _, id := range s.order {
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		if typeIDs != nil && !typeIDs[rec.ItemType] {
			continue
		}
		if q.Get("version") == "published" && rec.Status != "published" {
			continue
		}
		if !matchesFieldFilters(rec.Attributes, q) {
			continue
		}
		matched = append(matched, rec)
	}

	page := paginate(len(matched), q)
	list := make([]any, 0, page.end-page.start)
	for _, rec := range matched[page.start:page.end] {
		list = append(list, recordResource(rec))
	}
	writeList(w, list, len(matched))
}

func matchesFieldFilters(attrs map[string]any, q url.Values) bool {
	for key, values := range q {
		m := filterFieldsKey.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		field, op, want := m[1], m[2], values[0]
		got, present := attrs[field]
		gotStr := fmt.Sprint(got)
		switch op {
		case "eq":
			if !present || gotStr != want {
				return false
			}
		case "neq":
			if present && gotStr == want {
				return false
			}
		case "in":
			if !present || !containsString(strings.Split(want, ","), gotStr) {
				return false
			}
		case "notIn":
			if present && containsString(strings.Split(want, ","), gotStr) {
				return false
			}
		case "exists":
			if (want == "true") != (present && got != nil && gotStr != "") {
				return false
			}
		case "gt", "gte", "lt", "lte":
			a, errA := strconv.ParseFloat(gotStr, 64)
			b, errB := strconv.ParseFloat(want, 64)
			if !present || errA != nil || errB != nil {
				return false
			}
			if (op == "gt" && !(a > b)) || (op == "gte" && !(a >= b)) ||
				(op == "lt" && !(a < b)) || (op == "lte" && !(a <= b)) {
				return false
			}
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) == s {
			return true
		}
	}
	return false
}

type window struct{ start, end int }

func paginate(total int, q url.Values) window {
	limit, err := strconv.Atoi(q.Get("page[limit]"))
	if err != nil || limit <= 0 {
		limit = 30
	}
	offset, _ := strconv.Atoi(q.Get("page[offset]"))
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return window{start: offset, end: end}
}

func (s *CMAServer) createItem(w http.ResponseWriter, body map[string]any) {
	itemType, _ := dig(body, "data", "relationships", "item_type", "data", "id").(string)
	it := s.findItemType(itemType)
	if it == nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_FIELD")
		return
	}
	attrs, _ := dig(body, "data", "attributes").(map[string]any)
	for _, f := range it.Fields {
		if _, ok := f.Validators["unique"]; !ok {
			continue
		}
		for _, rec := range s.records {
			if rec.ItemType == it.ID && attrs[f.APIKey] != nil && fmt.Sprint(rec.Attributes[f.APIKey]) == fmt.Sprint(attrs[f.APIKey]) {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_UNIQUE")
				return
			}
		}
	}
	id := s.addRecord(it.ID, attrs)
	writeData(w, http.StatusCreated, recordResource(s.records[id]))
}

func (s *CMAServer) itemByID(w http.ResponseWriter, method, id string, body map[string]any) {
	rec, ok := s.records[id]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND")
		return
	}
	switch method {
	case http.MethodGet:
		writeData(w, http.StatusOK, recordResource(rec))
	case http.MethodPut:
		attrs, _ := dig(body, "data", "attributes").(map[string]any)
		for k, v := range attrs {
			rec.Attributes[k] = v
		}
		if rec.Status == "published" {
			rec.Status = "updated"
		}
		writeData(w, http.StatusOK, recordResource(rec))
	case http.MethodDelete:
		delete(s.records, id)
		writeData(w, http.StatusOK, recordResource(rec))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	}
}

func (s *CMAServer) createUpload(w http.ResponseWriter, body map[string]any) {
	path, _ := dig(body, "data", "attributes", "path").(string)
	filename, ok := s.requests[path]
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_FIELD")
		return
	}
	content, ok := s.stored[path]
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "FILE_NOT_UPLOADED")
		return
	}
	collection, _ := dig(body, "data", "relationships", "upload_collection", "data", "id").(string)

	sum := md5.Sum(content)
	id := s.newID()
	up := &Upload{ID: id, Filename: filename, MD5: hex.EncodeToString(sum[:]), Size: len(content), Collection: collection}
	s.uploads[id] = up
	s.uploadOrder = append(s.uploadOrder, id)

	jobID := "job-" + s.newID()
	s.jobs[jobID] = map[string]any{"data": uploadResource(up)}
	s.pendingJobs[jobID] = 1
	writeData(w, http.StatusAccepted, map[string]any{"id": jobID, "type": "job"})
}

func (s *CMAServer) listUploads(w http.ResponseWriter, q url.Values) {
	md5Filter := q.Get("filter[fields][md5][eq]")
	var matched []*Upload
	for _, id := range s.uploadOrder {
		up, ok := s.uploads[id]
		if !ok {
			continue
		}
		if md5Filter != "" && up.MD5 != md5Filter {
			continue
		}
		matched = append(matched, up)
	}
	page := paginate(len(matched), q)
	list := make([]any, 0, page.end-page.start)
	for _, up := range matched[page.start:page.end] {
		list = append(list, uploadResource(up))
	}
	writeList(w, list, len(matched))
}

func (s *CMAServer) serveFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	name := strings.TrimPrefix(r.URL.Path, "/files/")
	content, ok := s.files[name]
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	delay := s.FileDelay
	if d, slow := s.fileDelays[name]; slow {
		delay = d
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(content)
}

func (s *CMAServer) store(w http.ResponseWriter, r *http.Request) {
	content, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/storage")
	if _, ok := s.requests[path]; !ok || r.Method != http.MethodPut {
		http.Error(w, "unknown upload request", http.StatusForbidden)
		return
	}
	s.stored[path] = content
	w.WriteHeader(http.StatusOK)
}

func itemTypeResource(it *ItemType) map[string]any {
	return map[string]any{
		"id": it.ID, "type": "item_type",
		"attributes": map[string]any{
			"name": it.Name, "api_key": it.APIKey, "modular_block": it.ModularBlock,
			"singleton": false, "sortable": false, "tree": false, "draft_mode_active": true,
		},
	}
}

func fieldResource(f Field) map[string]any {
	validators := f.Validators
	if validators == nil {
		validators = map[string]any{}
	}
	return map[string]any{
		"id": f.ID, "type": "field",
		"attributes": map[string]any{
			"label": f.Label, "api_key": f.APIKey, "field_type": f.FieldType,
			"localized": f.Localized, "position": f.Position, "validators": validators,
			"appearance": map[string]any{"editor": f.Editor, "parameters": map[string]any{}},
			"hint": nil, "default_value": nil,
		},
	}
}

func recordResource(rec *Record) map[string]any {
	return map[string]any{
		"id": rec.ID, "type": "item",
		"attributes": rec.Attributes,
		"relationships": map[string]any{
			"item_type": map[string]any{"data": map[string]any{"type": "item_type", "id": rec.ItemType}},
		},
		"meta": map[string]any{"status": rec.Status},
	}
}

func uploadResource(up *Upload) map[string]any {
	var collection any
	if up.Collection != "" {
		collection = map[string]any{"type": "upload_collection", "id": up.Collection}
	}
	return map[string]any{
		"id": up.ID, "type": "upload",
		"attributes": map[string]any{
			"filename": up.Filename, "md5": up.MD5, "size": up.Size,
			"url": "https://www.datocms-assets.com/1/" + up.Filename,
		},
		"relationships": map[string]any{
			"upload_collection": map[string]any{"data": collection},
		},
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeList(w http.ResponseWriter, data []any, total int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "meta": map[string]any{"total_count": total}})
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": []any{map[string]any{
			"id": "err", "type": "api_error",
			"attributes": map[string]any{"code": code, "details": map[string]any{"status": status}},
		}},
	})
}

func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}
