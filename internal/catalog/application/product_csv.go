package application

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

// CSVHeader 导入导出列
var CSVHeader = []string{"id", "name", "price", "stock_quantity", "description", "categories"}

const categorySeparator = ";"

// ImportRowResult 单行导入结果
type ImportRowResult struct {
	Line      int    `json:"line"`
	ProductID string `json:"product_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ImportReport 导入汇总
type ImportReport struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Failed  int               `json:"failed"`
	Rows    []ImportRowResult `json:"rows"`
}

// ProductCSVService 商品 CSV 导入导出，每行独立事务
type ProductCSVService struct {
	commands   *CatalogCommandService
	products   domain.ProductRepository
	categories domain.CategoryRepository
}

// NewProductCSVService 创建 CSV 服务
func NewProductCSVService(commands *CatalogCommandService, products domain.ProductRepository, categories domain.CategoryRepository) *ProductCSVService {
	return &ProductCSVService{commands: commands, products: products, categories: categories}
}

// ExportProducts 按与列表接口相同的过滤条件导出
func (s *ProductCSVService) ExportProducts(ctx context.Context, filter domain.ProductFilter, w io.Writer) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	products, err := s.products.ListAll(ctx, filter)
	if err != nil {
		return 0, apperr.Persistence("list products", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}
	for _, p := range products {
		names := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			names = append(names, c.Name)
		}
		record := []string{
			p.ID,
			p.Name,
			p.Price.StringFixed(2),
			strconv.Itoa(p.StockQuantity),
			p.Description,
			strings.Join(names, categorySeparator),
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(products), cw.Error()
}

type csvColumns map[string]int

func (c csvColumns) get(record []string, name string) (string, bool) {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

// ImportProducts 无 id 的行新建，有 id 的行更新；单行失败不影响其余行
func (s *ProductCSVService) ImportProducts(ctx context.Context, r io.Reader) (*ImportReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.InvalidInput("csv is empty")
	}
	if err != nil {
		return nil, apperr.InvalidInput("malformed csv header: %v", err)
	}

	cols := csvColumns{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"name", "price", "stock_quantity"} {
		if _, ok := cols[required]; !ok {
			return nil, apperr.InvalidInput("csv header missing column %q", required)
		}
	}

	report := &ImportReport{Rows: []ImportRowResult{}}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				report.add(ImportRowResult{Line: pe.Line, Error: pe.Err.Error()})
				continue
			}
			return report, apperr.InvalidInput("read csv: %v", err)
		}
		line, _ := cr.FieldPos(0)
		report.add(s.importRow(ctx, line, cols, record))
	}

	logging.Info(ctx, "product import finished", "created", report.Created, "updated", report.Updated, "failed", report.Failed)
	return report, nil
}

func (r *ImportReport) add(row ImportRowResult) {
	switch {
	case row.Error != "":
		r.Failed++
	case row.Action == "created":
		r.Created++
	case row.Action == "updated":
		r.Updated++
	}
	r.Rows = append(r.Rows, row)
}

func (s *ProductCSVService) importRow(ctx context.Context, line int, cols csvColumns, record []string) ImportRowResult {
	fail := func(err error) ImportRowResult {
		res := ImportRowResult{Line: line, Error: err.Error()}
		if e, ok := apperr.As(err); ok {
			res.Error = e.Message
		}
		return res
	}

	name, _ := cols.get(record, "name")
	rawPrice, _ := cols.get(record, "price")
	rawStock, _ := cols.get(record, "stock_quantity")
	description, hasDescription := cols.get(record, "description")
	rawCategories, hasCategories := cols.get(record, "categories")
	id, _ := cols.get(record, "id")

	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return fail(apperr.InvalidInput("invalid price %q", rawPrice))
	}
	stock, err := strconv.Atoi(rawStock)
	if err != nil {
		return fail(apperr.InvalidInput("invalid stock_quantity %q", rawStock))
	}

	var categoryIDs []string
	if hasCategories {
		categoryIDs, err = s.categoryIDsByName(ctx, rawCategories)
		if err != nil {
			return fail(err)
		}
	}

	if id == "" {
		p, err := s.commands.CreateProduct(ctx, CreateProductCommand{
			Name:          name,
			Description:   description,
			Price:         price,
			StockQuantity: stock,
			CategoryIDs:   categoryIDs,
		})
		if err != nil {
			return fail(err)
		}
		return ImportRowResult{Line: line, ProductID: p.ID, Action: "created"}
	}

	cmd := UpdateProductCommand{ID: id, Name: &name, Price: &price, StockQuantity: &stock}
	if hasDescription {
		cmd.Description = &description
	}
	if hasCategories {
		cmd.CategoryIDs = categoryIDs
	}
	if _, err := s.commands.UpdateProduct(ctx, cmd); err != nil {
		return fail(err)
	}
	return ImportRowResult{Line: line, ProductID: id, Action: "updated"}
}

func (s *ProductCSVService) categoryIDsByName(ctx context.Context, raw string) ([]string, error) {
	ids := []string{}
	for _, name := range strings.Split(raw, categorySeparator) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c, err := s.categories.GetByName(ctx, name)
		if err != nil {
			return nil, apperr.Persistence("load category", err)
		}
		if c == nil {
			return nil, apperr.New(apperr.CodeNotFound, fmt.Sprintf("category %q not found", name))
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}
