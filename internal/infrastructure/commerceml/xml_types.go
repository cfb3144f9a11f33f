package commerceml

// Element and requisite names of the exchange documents.
const (
	rootElement       = "КоммерческаяИнформация"
	classifierElement = "Классификатор"
)

type xmlRef struct {
	ID   string `xml:"Ид"`
	Name string `xml:"Наименование"`
}

type xmlGroup struct {
	ID       string     `xml:"Ид"`
	Name     string     `xml:"Наименование"`
	Children []xmlGroup `xml:"Группы>Группа"`
}

type xmlDictValue struct {
	ID    string `xml:"ИдЗначения"`
	Value string `xml:"Значение"`
}

type xmlProperty struct {
	ID     string         `xml:"Ид"`
	Name   string         `xml:"Наименование"`
	Values []xmlDictValue `xml:"ВариантыЗначений>Справочник"`
}

type xmlPropertyValue struct {
	ID     string   `xml:"Ид"`
	Values []string `xml:"Значение"`
}

type xmlProduct struct {
	ID           string             `xml:"Ид"`
	SKU          string             `xml:"Артикул"`
	Name         string             `xml:"Наименование"`
	Description  string             `xml:"Описание"`
	Groups       []string           `xml:"Группы>Ид"`
	Manufacturer *xmlRef            `xml:"Изготовитель"`
	Images       []string           `xml:"Картинка"`
	Properties   []xmlPropertyValue `xml:"ЗначенияСвойств>ЗначенияСвойства"`
}

type xmlPriceType struct {
	ID       string `xml:"Ид"`
	Name     string `xml:"Наименование"`
	Currency string `xml:"Валюта"`
}

type xmlCharacteristic struct {
	Name  string `xml:"Наименование"`
	Value string `xml:"Значение"`
}

type xmlPrice struct {
	PriceTypeID string `xml:"ИдТипаЦены"`
	PerUnit     string `xml:"ЦенаЗаЕдиницу"`
	Currency    string `xml:"Валюта"`
}

type xmlRestWarehouse struct {
	ID       string `xml:"Ид"`
	Quantity string `xml:"Количество"`
}

type xmlRest struct {
	Quantity  *string           `xml:"Количество"`
	Warehouse *xmlRestWarehouse `xml:"Склад"`
}

type xmlWarehouseAttr struct {
	ID       string `xml:"ИдСклада,attr"`
	Quantity string `xml:"КоличествоНаСкладе,attr"`
}

type xmlOffer struct {
	ID              string              `xml:"Ид"`
	SKU             string              `xml:"Артикул"`
	Barcode         string              `xml:"ШтрихКод"`
	Name            string              `xml:"Наименование"`
	Characteristics []xmlCharacteristic `xml:"ХарактеристикиТовара>ХарактеристикаТовара"`
	Images          []string            `xml:"Картинка"`
	Prices          []xmlPrice          `xml:"Цены>Цена"`
	Quantity        *string             `xml:"Количество"`
	Rests           []xmlRest           `xml:"Остатки>Остаток"`
	Warehouses      []xmlWarehouseAttr  `xml:"Склад"`
}

type xmlRequisite struct {
	Name  string `xml:"Наименование"`
	Value string `xml:"Значение"`
}

type xmlDocument struct {
	ID         string         `xml:"Ид"`
	Number     string         `xml:"Номер"`
	Date       string         `xml:"Дата"`
	Time       string         `xml:"Время"`
	Requisites []xmlRequisite `xml:"ЗначенияРеквизитов>ЗначениеРеквизита"`
}
