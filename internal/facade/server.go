package facade

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"shopcrawl/internal/normalize"
	"shopcrawl/internal/product"
)

// requiredFields must all be present in a create payload.
var requiredFields = []string{
	"product_id", "title", "brand", "description", "current_price",
	"original_price", "availability", "image_urls", "colors", "sizes",
	"category_path", "url",
}

// Server exposes the query facade over one loaded data file.
type Server struct {
	mu    sync.Mutex
	table *Table
}

// NewServer creates a Server over an already-loaded table.
func NewServer(t *Table) *Server {
	return &Server{table: t}
}

// Router builds the gin route table.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.GET("/products", s.listProducts)
	r.GET("/products/search", s.searchProducts)
	r.GET("/products/summary", s.productsSummary)
	r.POST("/products/create", s.createProduct)
	r.PUT("/products/:id", s.updateProduct)
	r.DELETE("/products/:id", s.deleteProduct)
	return r
}

// reload re-reads the data file so mutations always start from the on-disk
// state.
func (s *Server) reload() error {
	t, err := Load(s.table.Path)
	if err != nil {
		return err
	}
	s.table = t
	return nil
}

func (s *Server) listProducts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"total_products": len(s.table.Records),
		"products":       s.table.Records,
	})
}

func (s *Server) searchProducts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]product.Record, 0, len(s.table.Records))
	for _, rec := range s.table.Records {
		if matches(rec, c) {
			filtered = append(filtered, rec)
		}
	}

	sortBy := c.DefaultQuery("sort_by", "title")
	ascending := c.DefaultQuery("sort_order", "asc") == "asc"
	if !sortRecords(filtered, sortBy, ascending) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported sort_by field: " + sortBy})
		return
	}

	if len(filtered) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No products found matching the criteria"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": filtered})
}

func matches(rec product.Record, c *gin.Context) bool {
	contains := func(haystack, needle string) bool {
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}

	if q := c.Query("title"); q != "" && !contains(rec.Title, q) {
		return false
	}
	if q := c.Query("description"); q != "" && !contains(rec.Description, q) {
		return false
	}
	if q := c.Query("product_id"); q != "" && !contains(rec.ProductID, q) {
		return false
	}

	// Range filters only match records with a known price.
	if q := c.Query("min_price"); q != "" {
		min, err := strconv.ParseFloat(q, 64)
		if err != nil || !rec.CurrentPrice.Known || rec.CurrentPrice.Value < min {
			return false
		}
	}
	if q := c.Query("max_price"); q != "" {
		max, err := strconv.ParseFloat(q, 64)
		if err != nil || !rec.CurrentPrice.Known || rec.CurrentPrice.Value > max {
			return false
		}
	}

	if q := c.Query("colors"); q != "" {
		any := false
		for _, color := range strings.Split(q, ",") {
			if color = strings.TrimSpace(color); color != "" && contains(rec.Colors, color) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	if q := c.Query("sizes"); q != "" {
		any := false
		for _, size := range strings.Split(q, ",") {
			size = strings.TrimSpace(size)
			for _, have := range rec.Sizes {
				if have == size {
					any = true
					break
				}
			}
		}
		if !any {
			return false
		}
	}

	return true
}

// sortRecords sorts in place; ok is false for an unsupported field.
func sortRecords(records []product.Record, field string, ascending bool) bool {
	var less func(a, b product.Record) bool
	switch field {
	case "title":
		less = func(a, b product.Record) bool { return a.Title < b.Title }
	case "product_id":
		less = func(a, b product.Record) bool { return a.ProductID < b.ProductID }
	case "brand":
		less = func(a, b product.Record) bool { return a.Brand < b.Brand }
	case "colors":
		less = func(a, b product.Record) bool { return a.Colors < b.Colors }
	case "availability":
		less = func(a, b product.Record) bool { return a.Availability < b.Availability }
	case "category_path":
		less = func(a, b product.Record) bool { return a.CategoryPath < b.CategoryPath }
	case "url":
		less = func(a, b product.Record) bool { return a.URL < b.URL }
	case "current_price":
		less = func(a, b product.Record) bool { return priceLess(a.CurrentPrice, b.CurrentPrice) }
	case "original_price":
		less = func(a, b product.Record) bool { return priceLess(a.OriginalPrice, b.OriginalPrice) }
	default:
		return false
	}

	sort.SliceStable(records, func(i, j int) bool {
		if ascending {
			return less(records[i], records[j])
		}
		return less(records[j], records[i])
	})
	return true
}

// priceLess orders unknown prices after known ones.
func priceLess(a, b normalize.Price) bool {
	if a.Known != b.Known {
		return a.Known
	}
	return a.Value < b.Value
}

func (s *Server) productsSummary(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type summary struct {
		CategoryPath string         `json:"category_path"`
		ProductCount int            `json:"product_count"`
		AveragePrice float64        `json:"average_price"`
		Availability map[string]int `json:"availability"`
	}

	byCategory := map[string]*summary{}
	priceSums := map[string]float64{}
	priceCounts := map[string]int{}
	for _, rec := range s.table.Records {
		entry, ok := byCategory[rec.CategoryPath]
		if !ok {
			entry = &summary{CategoryPath: rec.CategoryPath, Availability: map[string]int{}}
			byCategory[rec.CategoryPath] = entry
		}
		entry.ProductCount++
		entry.Availability[rec.Availability]++
		if rec.CurrentPrice.Known {
			priceSums[rec.CategoryPath] += rec.CurrentPrice.Value
			priceCounts[rec.CategoryPath]++
		}
	}

	out := make([]summary, 0, len(byCategory))
	for path, entry := range byCategory {
		if n := priceCounts[path]; n > 0 {
			entry.AveragePrice = roundTo2(priceSums[path] / float64(n))
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductCount != out[j].ProductCount {
			return out[i].ProductCount > out[j].ProductCount
		}
		return out[i].CategoryPath < out[j].CategoryPath
	})

	c.JSON(http.StatusOK, out)
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func (s *Server) createProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No JSON payload provided."})
		return
	}

	var missing []string
	for _, field := range requiredFields {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "missing": missing})
		return
	}

	rec, err := recordFromPayload(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "exception": err.Error()})
		return
	}

	if err := s.reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add product.", "exception": err.Error()})
		return
	}

	if s.findProduct(rec.ProductID) >= 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Duplicate entry: Product with this ID already exists."})
		return
	}

	s.table.Records = append(s.table.Records, rec)
	if err := s.table.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add product.", "exception": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) updateProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No JSON payload provided."})
		return
	}

	if err := s.reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to modify or delete product", "exception": err.Error()})
		return
	}

	idx := s.findProduct(c.Param("id"))
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	// product_id itself is never updated.
	delete(updates, "product_id")

	merged, err := applyUpdates(s.table.Records[idx], updates)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "exception": err.Error()})
		return
	}
	s.table.Records[idx] = merged

	if err := s.table.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to modify or delete product", "exception": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully"})
}

func (s *Server) deleteProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to modify or delete product", "exception": err.Error()})
		return
	}

	idx := s.findProduct(c.Param("id"))
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	s.table.Records = append(s.table.Records[:idx], s.table.Records[idx+1:]...)
	if err := s.table.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to modify or delete product", "exception": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// findProduct matches product IDs case-insensitively, trimmed.
func (s *Server) findProduct(id string) int {
	id = strings.ToLower(strings.TrimSpace(id))
	for i, rec := range s.table.Records {
		if strings.ToLower(strings.TrimSpace(rec.ProductID)) == id {
			return i
		}
	}
	return -1
}

func recordFromPayload(payload map[string]any) (product.Record, error) {
	var rec product.Record
	b, err := json.Marshal(payload)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, err
	}
	rec.Sizes = normalize.SizeList(rec.Sizes)
	return rec, nil
}

func applyUpdates(rec product.Record, updates map[string]any) (product.Record, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return rec, err
	}
	var merged map[string]any
	if err := json.Unmarshal(b, &merged); err != nil {
		return rec, err
	}
	for k, v := range updates {
		merged[k] = v
	}
	return recordFromPayload(merged)
}
