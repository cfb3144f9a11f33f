package exchange_test

import (
	"context"
	"strings"
	"testing"
	"time"

	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const e2eCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация ВерсияСхемы="2.05">
  <Классификатор>
    <Группы>
      <Группа><Ид>g-shoes</Ид><Наименование>Обувь</Наименование></Группа>
    </Группы>
  </Классификатор>
  <Каталог>
    <Товары>
      <Товар>
        <Ид>p-1</Ид><Наименование>Кроссовки беговые</Наименование>
        <Группы><Ид>g-shoes</Ид></Группы>
        <Изготовитель><Ид>b-1</Ид><Наименование>BOYBO</Наименование></Изготовитель>
      </Товар>
      <Товар>
        <Ид>p-2</Ид><Наименование>Кеды</Наименование>
        <Группы><Ид>g-shoes</Ид></Группы>
        <Изготовитель><Ид>b-1</Ид><Наименование>BOYBO</Наименование></Изготовитель>
      </Товар>
      <Товар>
        <Ид>p-3</Ид><Наименование>Сандалии</Наименование>
        <Группы><Ид>g-shoes</Ид></Группы>
        <Изготовитель><Ид>b-2</Ид><Наименование>Boy Bo</Наименование></Изготовитель>
      </Товар>
    </Товары>
  </Каталог>
</КоммерческаяИнформация>`

func newSession(t *testing.T, env *testEnv, importType exchange.ImportType) *exchange.ImportSession {
	t.Helper()
	s, err := exchange.NewImportSession(importType, exchange.TriggerAPI, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, env.sessions.Create(context.Background(), s))
	return s
}

func reload(t *testing.T, env *testEnv, s *exchange.ImportSession) *exchange.ImportSession {
	t.Helper()
	got, err := env.sessions.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	return got
}

func countOf(t *testing.T, env *testEnv, count func(repos appexchange.TransactionalRepositories) (int64, error)) int64 {
	t.Helper()
	var n int64
	env.inTx(t, func(repos appexchange.TransactionalRepositories) error {
		var err error
		n, err = count(repos)
		return err
	})
	return n
}

func TestProcessor_CatalogEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.writeFeed(t, "goods/import.xml", e2eCatalog)
	p := env.processor(appexchange.ProcessorConfig{Workers: 4})
	ctx := context.Background()

	s := newSession(t, env, exchange.ImportTypeCatalog)
	require.NoError(t, p.Run(ctx, s))

	got := reload(t, env, s)
	assert.Equal(t, exchange.SessionStatusCompleted, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.NotEmpty(t, got.Report)

	d := got.Details
	assert.Equal(t, 1, d.Stats("category").Created)
	assert.Equal(t, 1, d.Stats("brand").Created)
	assert.Equal(t, 1, d.Stats("brand").Aliased)
	assert.Equal(t, 3, d.Stats("product").Created)
	assert.Equal(t, 0, d.Totals().Updated)
	assert.Equal(t, 0, d.ErrorCount)
	assert.Empty(t, d.Errors)
	assert.Equal(t, d.TotalItems, d.ProcessedItems)

	assert.Equal(t, int64(1), countOf(t, env, func(r appexchange.TransactionalRepositories) (int64, error) { return r.CategoryRepo().Count(ctx) }))
	assert.Equal(t, int64(1), countOf(t, env, func(r appexchange.TransactionalRepositories) (int64, error) { return r.BrandRepo().Count(ctx) }))
	assert.Equal(t, int64(3), countOf(t, env, func(r appexchange.TransactionalRepositories) (int64, error) { return r.ProductRepo().Count(ctx) }))

	t.Run("every product points at the canonical brand", func(t *testing.T) {
		r := appexchange.NewResolvers()
		env.inTx(t, func(repos appexchange.TransactionalRepositories) error {
			brand, err := r.Brand.Lookup(ctx, repos, "b-2")
			require.NoError(t, err)
			for _, ext := range []string{"p-1", "p-2", "p-3"} {
				product, err := r.Product.Lookup(ctx, repos, ext)
				require.NoError(t, err)
				require.NotNil(t, product.BrandID)
				assert.Equal(t, brand.ID, *product.BrandID)
			}
			return nil
		})
	})

	t.Run("reimport changes nothing", func(t *testing.T) {
		again := newSession(t, env, exchange.ImportTypeCatalog)
		require.NoError(t, p.Run(ctx, again))
		d := reload(t, env, again).Details
		assert.Equal(t, 0, d.Totals().Created)
		assert.Equal(t, 0, d.Totals().Updated)
		assert.Equal(t, 3, d.Stats("product").Unchanged)
		assert.Equal(t, int64(3), countOf(t, env, func(r appexchange.TransactionalRepositories) (int64, error) { return r.ProductRepo().Count(ctx) }))
	})
}

const offersFeed = `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация>
  <ПакетПредложений>
    <ТипыЦен>
      <ТипЦены><Ид>pt-retail</Ид><Наименование>Розничная</Наименование><Валюта>RUB</Валюта></ТипЦены>
      <ТипЦены><Ид>pt-rrp</Ид><Наименование>РРЦ</Наименование><Валюта>RUB</Валюта></ТипЦены>
    </ТипыЦен>
    <Предложения>
      <Предложение>
        <Ид>p-1#v-1</Ид>
        <ХарактеристикиТовара>
          <ХарактеристикаТовара><Наименование>Размер</Наименование><Значение>42</Значение></ХарактеристикаТовара>
        </ХарактеристикиТовара>
        <Цены>
          <Цена><ИдТипаЦены>pt-retail</ИдТипаЦены><ЦенаЗаЕдиницу>1000</ЦенаЗаЕдиницу></Цена>
        </Цены>
        <Остатки><Остаток><Склад><Ид>w1</Ид><Количество>7</Количество></Склад></Остаток></Остатки>
      </Предложение>
      <Предложение>
        <Ид>p-1#v-2</Ид>
        <ХарактеристикиТовара>
          <ХарактеристикаТовара><Наименование>Размер</Наименование><Значение>43</Значение></ХарактеристикаТовара>
        </ХарактеристикиТовара>
        <Цены>
          <Цена><ИдТипаЦены>pt-retail</ИдТипаЦены><ЦенаЗаЕдиницу>1000</ЦенаЗаЕдиницу></Цена>
          <Цена><ИдТипаЦены>pt-rrp</ИдТипаЦены><ЦенаЗаЕдиницу>1500</ЦенаЗаЕдиницу></Цена>
        </Цены>
      </Предложение>
      <Предложение>
        <Ид>p-missing#v-1</Ид>
        <Наименование>Сирота</Наименование>
      </Предложение>
    </Предложения>
  </ПакетПредложений>
</КоммерческаяИнформация>`

func TestProcessor_OffersPricesAndStock(t *testing.T) {
	env := newTestEnv(t)
	env.writeFeed(t, "goods/import.xml", e2eCatalog)
	env.writeFeed(t, "offers/offers.xml", offersFeed)
	fields, err := appexchange.NewPriceFieldMap(map[string]string{"розничная": "retail_price", "ррц": "rrp"})
	require.NoError(t, err)
	p := env.processor(appexchange.ProcessorConfig{PriceFields: fields})
	ctx := context.Background()

	s := newSession(t, env, exchange.ImportTypeFull)
	require.NoError(t, p.Run(ctx, s))
	got := reload(t, env, s)
	require.Equal(t, exchange.SessionStatusCompleted, got.Status)

	t.Run("variants are created under their product", func(t *testing.T) {
		assert.Equal(t, 2, got.Details.Stats("variant").Created)
		assert.Equal(t, 2, got.Details.Stats("price_type").Created)
	})

	t.Run("offer of an unknown product is a record error", func(t *testing.T) {
		require.NotEmpty(t, got.Details.Errors)
		issue := got.Details.Errors[0]
		assert.Equal(t, appexchange.CodeReferenceNotFound, issue.Code)
		assert.Equal(t, "p-missing#v-1", issue.ExternalID)
		assert.Equal(t, string(appexchange.PassVariants), issue.Pass)
	})

	r := appexchange.NewResolvers()
	env.inTx(t, func(repos appexchange.TransactionalRepositories) error {
		v1, err := r.Variant.Lookup(ctx, repos, "p-1#v-1")
		require.NoError(t, err)
		v2, err := r.Variant.Lookup(ctx, repos, "p-1#v-2")
		require.NoError(t, err)

		t.Run("rrp follows retail when not supplied", func(t *testing.T) {
			require.NotNil(t, v1.RetailPrice)
			require.NotNil(t, v1.RRP)
			assert.True(t, v1.RetailPrice.Equal(*v1.RRP))
		})

		t.Run("explicit rrp wins", func(t *testing.T) {
			require.NotNil(t, v2.RRP)
			assert.True(t, decimal.NewFromInt(1500).Equal(*v2.RRP))
			require.NotNil(t, v2.RetailPrice)
			assert.True(t, decimal.NewFromInt(1000).Equal(*v2.RetailPrice))
		})

		t.Run("stock replaced", func(t *testing.T) {
			assert.True(t, decimal.NewFromInt(7).Equal(v1.StockQuantity))
		})

		t.Run("variant name built from characteristics", func(t *testing.T) {
			assert.NotEqual(t, v1.Name, v2.Name)
			assert.True(t, strings.Contains(v1.Name, "42"))
		})
		return nil
	})
}

const imageCatalogFeed = `<КоммерческаяИнформация><Каталог><Товары>
<Товар><Ид>p-1</Ид><Наименование>Мяч</Наименование><Картинка>import_files/ab/ball.jpg</Картинка></Товар>
<Товар><Ид>p-2</Ид><Наименование>Сетка</Наименование><Картинка>import_files/ab/missing.jpg</Картинка></Товар>
</Товары></Каталог></КоммерческаяИнформация>`

const imageOffersFeed = `<КоммерческаяИнформация><ПакетПредложений><Предложения>
<Предложение><Ид>p-1#v-5</Ид><Наименование>Мяч 5</Наименование><Картинка>import_files/cd/ball-5.jpg</Картинка></Предложение>
</Предложения></ПакетПредложений></КоммерческаяИнформация>`

func TestProcessor_Images(t *testing.T) {
	jpeg := []byte("\xff\xd8\xff\xe0jpeg")
	ctx := context.Background()

	env := newTestEnv(t)
	env.writeFeed(t, "goods/import.xml", imageCatalogFeed)
	writeFile(t, env.root+"/goods/import_files/ab/ball.jpg", jpeg)
	p := env.processor(appexchange.ProcessorConfig{})

	s := newSession(t, env, exchange.ImportTypeCatalog)
	require.NoError(t, p.Run(ctx, s))
	got := reload(t, env, s)
	require.Equal(t, exchange.SessionStatusCompleted, got.Status)

	data, ok := env.storage.get("images/ab/ball.jpg")
	require.True(t, ok, "stored keys: %v", env.storage.keys())
	assert.Equal(t, jpeg, data)
	assert.Equal(t, "image/jpeg", env.storage.types["images/ab/ball.jpg"])

	t.Run("product images need no fallback note", func(t *testing.T) {
		assert.Empty(t, got.Details.Notes)
	})

	t.Run("missing file fails the record", func(t *testing.T) {
		require.Equal(t, 1, got.Details.ErrorCount)
		assert.Equal(t, appexchange.CodeImageNotFound, got.Details.Errors[0].Code)
		assert.Equal(t, "p-2", got.Details.Errors[0].ExternalID)
	})

	t.Run("reimport does not upload again", func(t *testing.T) {
		before := env.storage.uploads
		again := newSession(t, env, exchange.ImportTypeCatalog)
		require.NoError(t, p.Run(ctx, again))
		assert.Equal(t, before, env.storage.uploads)
		assert.Equal(t, 1, reload(t, env, again).Details.Stats("image").Unchanged)
	})

	t.Run("product images ignore offers/import_files", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFeed(t, "goods/import.xml", imageCatalogFeed)
		writeFile(t, env.root+"/goods/import_files/ab/ball.jpg", jpeg)
		writeFile(t, env.root+"/offers/import_files/zz/other.jpg", jpeg)
		p := env.processor(appexchange.ProcessorConfig{})

		s := newSession(t, env, exchange.ImportTypeCatalog)
		require.NoError(t, p.Run(ctx, s))
		got := reload(t, env, s)

		_, ok := env.storage.get("images/ab/ball.jpg")
		assert.True(t, ok, "stored keys: %v", env.storage.keys())
		require.Equal(t, 1, got.Details.ErrorCount)
		assert.Equal(t, "p-2", got.Details.Errors[0].ExternalID)
	})

	t.Run("offer images fall back to goods with a note", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFeed(t, "goods/import.xml", imageCatalogFeed)
		env.writeFeed(t, "offers/offers.xml", imageOffersFeed)
		writeFile(t, env.root+"/goods/import_files/cd/ball-5.jpg", jpeg)
		p := env.processor(appexchange.ProcessorConfig{})

		require.NoError(t, p.Run(ctx, newSession(t, env, exchange.ImportTypeCatalog)))
		offers := newSession(t, env, exchange.ImportTypeOffers)
		require.NoError(t, p.Run(ctx, offers))
		got := reload(t, env, offers)
		require.Equal(t, exchange.SessionStatusCompleted, got.Status)

		_, ok := env.storage.get("images/cd/ball-5.jpg")
		assert.True(t, ok, "stored keys: %v", env.storage.keys())
		assert.Equal(t, 1, got.Details.Stats("image").Created)
		require.Len(t, got.Details.Notes, 1)
		assert.Contains(t, got.Details.Notes[0], "goods/import_files")
	})

	t.Run("offer images prefer offers/import_files", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFeed(t, "goods/import.xml", imageCatalogFeed)
		env.writeFeed(t, "offers/offers.xml", imageOffersFeed)
		writeFile(t, env.root+"/offers/import_files/cd/ball-5.jpg", []byte("offers copy"))
		writeFile(t, env.root+"/goods/import_files/cd/ball-5.jpg", []byte("goods copy"))
		p := env.processor(appexchange.ProcessorConfig{})

		require.NoError(t, p.Run(ctx, newSession(t, env, exchange.ImportTypeCatalog)))
		offers := newSession(t, env, exchange.ImportTypeOffers)
		require.NoError(t, p.Run(ctx, offers))

		data, ok := env.storage.get("images/cd/ball-5.jpg")
		require.True(t, ok)
		assert.Equal(t, []byte("offers copy"), data)
		assert.Empty(t, reload(t, env, offers).Details.Notes)
	})
}

func TestNormalizeImagePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"import_files/xx/file.jpg", "xx/file.jpg"},
		{"xx/import_files/file.jpg", "xx/import_files/file.jpg"},
		{"import_files/", ""},
		{"import_files", "import_files"},
		{"Import_Files/xx/file.jpg", "Import_Files/xx/file.jpg"},
		{"import_files/import_files/a.jpg", "import_files/a.jpg"},
		{"xx/file.jpg", "xx/file.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, appexchange.NormalizeImagePath(tt.in))
		})
	}
}

func TestProcessor_RecordErrorsAndBudget(t *testing.T) {
	feed := `<КоммерческаяИнформация><Каталог><Товары>
<Товар><Ид>p-1</Ид><Наименование>A</Наименование><Группы><Ид>nope</Ид></Группы></Товар>
<Товар><Ид>p-2</Ид><Наименование>B</Наименование><Группы><Ид>nope</Ид></Группы></Товар>
<Товар><Ид>p-3</Ид><Наименование>C</Наименование></Товар>
</Товары></Каталог></КоммерческаяИнформация>`
	ctx := context.Background()

	t.Run("errors within budget are counted", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFeed(t, "goods/import.xml", feed)
		p := env.processor(appexchange.ProcessorConfig{MaxErrors: 5})

		s := newSession(t, env, exchange.ImportTypeCatalog)
		require.NoError(t, p.Run(ctx, s))
		got := reload(t, env, s)
		assert.Equal(t, exchange.SessionStatusCompleted, got.Status)
		assert.Equal(t, 2, got.Details.ErrorCount)
		assert.Equal(t, 2, got.Details.Stats("product").Errors)
		assert.Equal(t, 1, got.Details.Stats("product").Created)
		for _, issue := range got.Details.Errors {
			assert.Equal(t, appexchange.CodeReferenceNotFound, issue.Code)
			assert.Positive(t, issue.Line)
		}
	})

	t.Run("exceeding the budget fails the run", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFeed(t, "goods/import.xml", feed)
		p := env.processor(appexchange.ProcessorConfig{MaxErrors: 1})

		s := newSession(t, env, exchange.ImportTypeCatalog)
		err := p.Run(ctx, s)
		require.Error(t, err)
		assert.True(t, appexchange.IsFatal(err))

		got := reload(t, env, s)
		assert.Equal(t, exchange.SessionStatusFailed, got.Status)
		assert.Contains(t, got.ErrorMessage, "error budget exceeded")
		assert.NotEmpty(t, got.Report)
		require.NotNil(t, got.FinishedAt)
	})
}

func TestProcessor_MalformedDocumentFailsSession(t *testing.T) {
	env := newTestEnv(t)
	env.writeFeed(t, "goods/import.xml", `<КоммерческаяИнформация><Каталог>`)
	p := env.processor(appexchange.ProcessorConfig{})

	s := newSession(t, env, exchange.ImportTypeCatalog)
	require.Error(t, p.Run(context.Background(), s))

	got := reload(t, env, s)
	assert.Equal(t, exchange.SessionStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "goods/import.xml")
}

func TestProcessor_ResumesFromCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	env.writeFeed(t, "goods/import.xml", `<КоммерческаяИнформация><Каталог><Товары>
<Товар><Ид>p-1</Ид><Наименование>A</Наименование></Товар>
<Товар><Ид>p-2</Ид><Наименование>B</Наименование></Товар>
<Товар><Ид>p-3</Ид><Наименование>C</Наименование></Товар>
</Товары></Каталог></КоммерческаяИнформация>`)
	ctx := context.Background()
	now := time.Now().UTC()

	s, err := exchange.NewImportSession(exchange.ImportTypeCatalog, exchange.TriggerAPI, now)
	require.NoError(t, err)
	require.NoError(t, s.Start(now))
	require.NoError(t, s.BeginProcessing(3, now))
	require.NoError(t, s.Progress(2, exchange.Checkpoint{
		CompletedPasses: []string{"categories", "brands", "attributes"},
		Pass:            "products",
		File:            "goods/import.xml",
		Offset:          2,
	}, now))
	require.NoError(t, env.sessions.Create(ctx, s))

	p := env.processor(appexchange.ProcessorConfig{})
	require.NoError(t, p.Run(ctx, s))

	got := reload(t, env, s)
	assert.Equal(t, exchange.SessionStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Details.Stats("product").Created)
	assert.Equal(t, int64(1), countOf(t, env, func(r appexchange.TransactionalRepositories) (int64, error) { return r.ProductRepo().Count(ctx) }))

	r := appexchange.NewResolvers()
	env.inTx(t, func(repos appexchange.TransactionalRepositories) error {
		_, err := r.Product.Lookup(ctx, repos, "p-3")
		assert.NoError(t, err)
		return nil
	})
}

func TestProcessor_ResumeDoesNotRecountReaderErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	resumable := func(t *testing.T, env *testEnv, cp exchange.Checkpoint) *exchange.ImportSession {
		t.Helper()
		s, err := exchange.NewImportSession(exchange.ImportTypeCatalog, exchange.TriggerAPI, now)
		require.NoError(t, err)
		require.NoError(t, s.Start(now))
		require.NoError(t, s.BeginProcessing(3, now))
		s.Details.AddIssue(exchange.RecordIssue{Pass: "categories", Line: 2, Code: "MISSING_FIELD", Message: "already reported"})
		require.NoError(t, s.Progress(cp.Offset, cp, now))
		require.NoError(t, env.sessions.Create(ctx, s))
		return s
	}

	t.Run("owning pass already completed", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFeed(t, "goods/import.xml", `<КоммерческаяИнформация><Каталог><Товары>
<Товар><Ид>p-1</Ид><Наименование>A</Наименование></Товар>
<Товар><Ид>p-bad</Ид></Товар>
<Товар><Ид>p-2</Ид><Наименование>B</Наименование></Товар>
</Товары></Каталог></КоммерческаяИнформация>`)
		s := resumable(t, env, exchange.Checkpoint{
			CompletedPasses: []string{"categories", "brands", "attributes"},
			Pass:            "products",
			File:            "goods/import.xml",
			Offset:          1,
		})

		p := env.processor(appexchange.ProcessorConfig{MaxErrors: 1})
		require.NoError(t, p.Run(ctx, s))

		got := reload(t, env, s)
		assert.Equal(t, exchange.SessionStatusCompleted, got.Status)
		assert.Equal(t, 1, got.Details.ErrorCount)
		assert.Len(t, got.Details.Errors, 1)
		assert.Equal(t, 1, got.Details.Stats("product").Created)
	})

	t.Run("owning pass resumes past the error", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeFeed(t, "goods/import.xml", `<КоммерческаяИнформация><Классификатор><Группы>
<Группа><Ид>g-bad</Ид></Группа>
<Группа><Ид>g-1</Ид><Наименование>Обувь</Наименование></Группа>
<Группа><Ид>g-2</Ид><Наименование>Одежда</Наименование></Группа>
</Группы></Классификатор></КоммерческаяИнформация>`)
		s := resumable(t, env, exchange.Checkpoint{Pass: "categories", File: "goods/import.xml", Offset: 1})

		p := env.processor(appexchange.ProcessorConfig{MaxErrors: 1})
		require.NoError(t, p.Run(ctx, s))

		got := reload(t, env, s)
		assert.Equal(t, exchange.SessionStatusCompleted, got.Status)
		assert.Equal(t, 1, got.Details.ErrorCount)
		assert.Equal(t, 1, got.Details.Stats("category").Created)
	})
}

func TestProcessor_CancelRequest(t *testing.T) {
	env := newTestEnv(t)
	env.writeFeed(t, "goods/import.xml", e2eCatalog)
	p := env.processor(appexchange.ProcessorConfig{ProgressEvery: 1})
	ctx := context.Background()

	s := newSession(t, env, exchange.ImportTypeCatalog)
	require.NoError(t, env.sessions.MarkCancelRequested(ctx, s.ID))

	err := p.Run(ctx, s)
	assert.ErrorIs(t, err, appexchange.ErrCancelled)

	got := reload(t, env, s)
	assert.Equal(t, exchange.SessionStatusFailed, got.Status)
	assert.Equal(t, "cancelled by operator", got.ErrorMessage)
	assert.Equal(t, 1, got.Details.Stats("category").Created, "the in-flight record completes")
	assert.Equal(t, int64(0), countOf(t, env, func(r appexchange.TransactionalRepositories) (int64, error) { return r.BrandRepo().Count(ctx) }))
}

func TestProcessor_InterruptedRunStaysResumable(t *testing.T) {
	env := newTestEnv(t)
	env.writeFeed(t, "goods/import.xml", e2eCatalog)
	p := env.processor(appexchange.ProcessorConfig{})

	s := newSession(t, env, exchange.ImportTypeCatalog)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, p.Run(ctx, s))
	got := reload(t, env, s)
	assert.True(t, got.IsActive())
	assert.Nil(t, got.FinishedAt)
}

func TestProcessor_RejectsTerminalSession(t *testing.T) {
	env := newTestEnv(t)
	p := env.processor(appexchange.ProcessorConfig{})
	s := newSession(t, env, exchange.ImportTypeStock)
	require.NoError(t, s.Fail("boom", time.Now()))

	assert.Error(t, p.Run(context.Background(), s))
}

func TestPassesFor(t *testing.T) {
	assert.Equal(t, appexchange.AllPasses, appexchange.PassesFor(exchange.ImportTypeFull))
	assert.Equal(t, []appexchange.Pass{appexchange.PassStock}, appexchange.PassesFor(exchange.ImportTypeStock))
	assert.Equal(t, []appexchange.Pass{appexchange.PassOrderStatus}, appexchange.PassesFor(exchange.ImportTypeOrderStatus))

	fields, err := appexchange.NewPriceFieldMap(map[string]string{"Розничная цена": "retail_price"})
	require.NoError(t, err)
	assert.Equal(t, catalog.PriceFieldRetail, fields.FieldFor("РОЗНИЧНАЯ  ЦЕНА"))
	assert.Equal(t, catalog.PriceFieldNone, fields.FieldFor("Оптовая"))

	_, err = appexchange.NewPriceFieldMap(map[string]string{"x": "bogus"})
	assert.Error(t, err)
}
