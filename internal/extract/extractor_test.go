package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-copy/internal/product"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractNameAndDescription(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1 class="product-title">Áo Thun</h1>
		<div class="product-description">Chất liệu cotton</div>
	</body></html>`
	text, err := New(nil).Extract([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, "Tên sản phẩm: Áo Thun\nChất liệu cotton", text.String())
}

func TestNamePrefersSpecificTitle(t *testing.T) {
	t.Parallel()

	html := `<html><body><h1>Leonardo</h1><div class="product-title">Quần Jean</div></body></html>`
	text, err := New(nil).Extract([]byte(html))
	require.NoError(t, err)
	require.NotEmpty(t, text.Blocks)
	assert.Equal(t, "Tên sản phẩm: Quần Jean", text.Blocks[0])
}

func TestNameCascadeFallsThrough(t *testing.T) {
	t.Parallel()

	name := DefaultFields()[0]
	got, ok := name.Apply(mustDoc(t, `<h1>  Váy   Hoa </h1>`))
	require.True(t, ok)
	assert.Equal(t, "Váy Hoa", got)

	got, ok = name.Apply(mustDoc(t, `<span class="item-title">Giày Da</span>`))
	require.True(t, ok)
	assert.Equal(t, "Giày Da", got)

	_, ok = name.Apply(mustDoc(t, `<h1>   </h1>`))
	assert.False(t, ok)
}

func TestPriceRequiresCurrency(t *testing.T) {
	t.Parallel()

	price := DefaultFields()[1]
	got, ok := price.Apply(mustDoc(t, `
		<div class="price-filter">Lọc theo giá</div>
		<span class="product-price">259.000₫</span>`))
	require.True(t, ok)
	assert.Equal(t, "259.000₫", got)

	got, ok = price.Apply(mustDoc(t, `<div class="price-note">Giá tốt</div><p class="price">199.000 đ</p>`))
	require.True(t, ok)
	assert.Equal(t, "199.000 đ", got)

	_, ok = price.Apply(mustDoc(t, `<div class="price-box">Liên hệ</div>`))
	assert.False(t, ok)
}

func TestHasCurrency(t *testing.T) {
	t.Parallel()

	for text, want := range map[string]bool{
		"259.000₫":   true,
		"259.000đ":   true,
		"259000 VND": true,
		"259000 vnđ": true,
		"$12.50":     true,
		"Giá tốt":    false,
		"Màu đen":    false,
		"":           false,
	} {
		assert.Equal(t, want, HasCurrency(text), text)
	}
}

func TestDescriptionParagraphFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<p>Miễn phí ship</p>
		<p>Áo sơ mi linen thoáng mát, phù hợp đi làm và dạo phố.</p>
		<p>Một đoạn văn khác cũng đủ dài để vượt ngưỡng ký tự.</p>
	</body></html>`
	text, err := New(nil).Extract([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, []string{"Áo sơ mi linen thoáng mát, phù hợp đi làm và dạo phố."}, text.Blocks)
}

func TestDetailsInDocumentOrderWithDedup(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1 class="product-title">Áo Khoác</h1>
		<div class="product-details">
			<ul><li>Chất liệu: dù</li><li>Xuất xứ: Việt Nam</li></ul>
			<ul><li>Short</li></ul>
			<ul><li>Chất liệu: dù</li><li>Xuất xứ: Việt Nam</li></ul>
			<ul><li>Bảo hành đổi trả trong 30 ngày</li></ul>
		</div>
	</body></html>`
	text, err := New(nil).Extract([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Tên sản phẩm: Áo Khoác",
		"- Chất liệu: dù\n- Xuất xứ: Việt Nam",
		"- Bảo hành đổi trả trong 30 ngày",
	}, text.Blocks)
}

func TestNestedDetailListsRenderEachItemOnce(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="product-details"><ul>
		<li>Chất liệu: cotton 100%<ul><li>Xuất xứ: Việt Nam sản xuất</li></ul></li>
		<li>Kiểu dáng: ôm</li>
	</ul></div></body></html>`
	text, err := New(nil).Extract([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"- Chất liệu: cotton 100%\n- Xuất xứ: Việt Nam sản xuất\n- Kiểu dáng: ôm",
	}, text.Blocks)
}

func TestFullOrdering(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<ul class="product-specs"><li>Kích thước: S, M, L, XL</li></ul>
		<div class="product-description">Form rộng, vải dày dặn</div>
		<span class="product-price">350.000₫</span>
		<h1 class="product-title">Hoodie</h1>
	</body></html>`
	text, err := New(nil).Extract([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Tên sản phẩm: Hoodie",
		"Giá: 350.000₫",
		"Form rộng, vải dày dặn",
		"- Kích thước: S, M, L, XL",
	}, text.Blocks)
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	html := `<html><body><p>Trang chủ</p><ul><li>Menu</li></ul></body></html>`
	_, err := New(nil).Extract([]byte(html))
	require.ErrorIs(t, err, product.ErrNotFound)

	_, err = New(nil).Extract(nil)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestCustomCascades(t *testing.T) {
	t.Parallel()

	e := New(nil,
		WithFields(Field{Name: "sku", Prefix: "SKU: ", Rules: []Rule{{Selector: "[data-sku]"}}}),
		WithDetails(ListRule{}),
	)
	text, err := e.Extract([]byte(`<h1>ignored</h1><span data-sku>LEO-01</span>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU: LEO-01"}, text.Blocks)
}
