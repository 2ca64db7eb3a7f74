// Package shoplink builds marketplace search URLs for a product query, with
// country-specific storefronts where a marketplace has them.
package shoplink

import (
	"net/url"
	"strings"
)

const googleSearch = "https://www.google.com/search?q="

// templates maps marketplace -> country -> search URL prefix. The "" key is
// the marketplace default.
var templates = map[string]map[string]string{
	"jumia": {
		"ci": "https://www.jumia.ci/catalog/?q=",
		"sn": "https://www.jumia.sn/catalog/?q=",
		"ma": "https://www.jumia.ma/catalog/?q=",
		"":   "https://www.jumia.com/catalog/?q=",
	},
	"amazon": {
		"fr": "https://www.amazon.fr/s?k=",
		"us": "https://www.amazon.com/s?k=",
		"":   "https://www.amazon.com/s?k=",
	},
	"aliexpress": {
		"": "https://www.aliexpress.com/wholesale?SearchText=",
	},
	"ebay": {
		"": "https://www.ebay.com/sch/i.html?_nkw=",
	},
	"cdiscount": {
		"fr": "https://www.cdiscount.com/search/10/",
		"":   "https://www.cdiscount.com/search/10/",
	},
	"alibaba": {
		"": "https://www.alibaba.com/trade/search?SearchText=",
	},
}

// Known returns the marketplaces with a dedicated template, for display.
func Known() []string {
	return []string{"jumia", "amazon", "aliexpress", "ebay", "cdiscount", "alibaba"}
}

// Build returns the search URL for a query on a marketplace. Unknown but
// non-empty shops get a Google "site:" search; an empty shop gets a plain
// Google search. Cdiscount uses a path segment instead of a query parameter.
func Build(shop, country, query string) string {
	shop = strings.ToLower(strings.TrimSpace(shop))
	country = strings.ToLower(strings.TrimSpace(country))
	q := url.QueryEscape(query)

	if conf, ok := templates[shop]; ok {
		prefix := conf[country]
		if prefix == "" {
			prefix = conf[""]
		}
		if shop == "cdiscount" {
			return prefix + q + ".html"
		}
		return prefix + q
	}

	if shop != "" {
		return googleSearch + "site:" + url.QueryEscape(shop) + "+" + q
	}
	return googleSearch + q
}
