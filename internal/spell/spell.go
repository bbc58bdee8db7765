// Package spell converts integers to their written-out form in the
// locales the node API serves. It is pure: same input, same output.
//
// Coverage is bounded to 0..999999 per locale; anything outside that
// range, and any unsupported locale, returns an error so callers can
// fall back to English.
package spell

import (
	"errors"
	"fmt"
	"strings"
)

const maxSpellable = 999999

var (
	ErrUnsupportedLocale = errors.New("unsupported locale")
	ErrOutOfRange        = errors.New("number out of spellable range")
)

type speller func(n int) string

var spellers = map[string]speller{
	"en": spellEnglish,
	"es": spellSpanish,
	"fr": spellFrench,
	"de": spellGerman,
	"it": spellItalian,
	"pt": spellPortuguese,
	"ru": spellRussian,
	"ar": spellArabic,
}

// Spell renders n in the given 2-letter locale.
func Spell(n int, locale string) (string, error) {
	fn, ok := spellers[locale]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}
	if n < 0 || n > maxSpellable {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}
	return fn(n), nil
}

// Supported reports whether a locale has a speller.
func Supported(locale string) bool {
	_, ok := spellers[locale]
	return ok
}

// ── English ──

var enOnes = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen"}
var enTens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

func spellEnglish(n int) string {
	switch {
	case n < 20:
		return enOnes[n]
	case n < 100:
		s := enTens[n/10]
		if n%10 != 0 {
			s += "-" + enOnes[n%10]
		}
		return s
	case n < 1000:
		s := enOnes[n/100] + " hundred"
		if n%100 != 0 {
			s += " " + spellEnglish(n%100)
		}
		return s
	default:
		s := spellEnglish(n/1000) + " thousand"
		if n%1000 != 0 {
			s += " " + spellEnglish(n%1000)
		}
		return s
	}
}

// ── Spanish ──

var esOnes = []string{"cero", "uno", "dos", "tres", "cuatro", "cinco", "seis", "siete", "ocho", "nueve",
	"diez", "once", "doce", "trece", "catorce", "quince", "dieciséis", "diecisiete", "dieciocho", "diecinueve"}
var esTens = []string{"", "", "veinte", "treinta", "cuarenta", "cincuenta", "sesenta", "setenta", "ochenta", "noventa"}
var esTwenties = []string{"veinte", "veintiuno", "veintidós", "veintitrés", "veinticuatro", "veinticinco",
	"veintiséis", "veintisiete", "veintiocho", "veintinueve"}
var esHundreds = []string{"", "ciento", "doscientos", "trescientos", "cuatrocientos", "quinientos",
	"seiscientos", "setecientos", "ochocientos", "novecientos"}

func spellSpanish(n int) string {
	switch {
	case n < 20:
		return esOnes[n]
	case n < 30:
		return esTwenties[n-20]
	case n < 100:
		s := esTens[n/10]
		if n%10 != 0 {
			s += " y " + esOnes[n%10]
		}
		return s
	case n == 100:
		return "cien"
	case n < 1000:
		s := esHundreds[n/100]
		if n%100 != 0 {
			s += " " + spellSpanish(n%100)
		}
		return s
	default:
		var s string
		if n/1000 == 1 {
			s = "mil"
		} else {
			s = spellSpanish(n/1000) + " mil"
		}
		if n%1000 != 0 {
			s += " " + spellSpanish(n%1000)
		}
		return s
	}
}

// ── French ──

var frOnes = []string{"zéro", "un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit", "neuf",
	"dix", "onze", "douze", "treize", "quatorze", "quinze", "seize", "dix-sept", "dix-huit", "dix-neuf"}
var frTens = []string{"", "", "vingt", "trente", "quarante", "cinquante", "soixante"}

func spellFrench(n int) string {
	switch {
	case n < 20:
		return frOnes[n]
	case n < 70:
		s := frTens[n/10]
		switch {
		case n%10 == 1:
			s += "-et-un"
		case n%10 != 0:
			s += "-" + frOnes[n%10]
		}
		return s
	case n < 80:
		if n == 71 {
			return "soixante-et-onze"
		}
		return "soixante-" + frOnes[n-60]
	case n < 100:
		if n == 80 {
			return "quatre-vingts"
		}
		return "quatre-vingt-" + frOnes[n-80]
	case n < 1000:
		var s string
		switch {
		case n/100 == 1:
			s = "cent"
		case n%100 == 0:
			s = frOnes[n/100] + " cents"
		default:
			s = frOnes[n/100] + " cent"
		}
		if n%100 != 0 {
			s += " " + spellFrench(n%100)
		}
		return s
	default:
		var s string
		if n/1000 == 1 {
			s = "mille"
		} else {
			s = spellFrench(n/1000) + " mille"
		}
		if n%1000 != 0 {
			s += " " + spellFrench(n%1000)
		}
		return s
	}
}

// ── German ──

var deOnes = []string{"null", "eins", "zwei", "drei", "vier", "fünf", "sechs", "sieben", "acht", "neun",
	"zehn", "elf", "zwölf", "dreizehn", "vierzehn", "fünfzehn", "sechzehn", "siebzehn", "achtzehn", "neunzehn"}
var deTens = []string{"", "", "zwanzig", "dreißig", "vierzig", "fünfzig", "sechzig", "siebzig", "achtzig", "neunzig"}

// deUnit is the form used inside compounds ("ein" instead of "eins").
func deUnit(d int) string {
	if d == 1 {
		return "ein"
	}
	return deOnes[d]
}

func spellGerman(n int) string {
	switch {
	case n < 20:
		return deOnes[n]
	case n < 100:
		if n%10 == 0 {
			return deTens[n/10]
		}
		return deUnit(n%10) + "und" + deTens[n/10]
	case n < 1000:
		s := deUnit(n/100) + "hundert"
		if n%100 != 0 {
			s += spellGerman(n % 100)
		}
		return s
	default:
		k := n / 1000
		var s string
		if k < 20 {
			s = deUnit(k) + "tausend"
		} else {
			s = spellGerman(k) + "tausend"
		}
		if n%1000 != 0 {
			s += spellGerman(n % 1000)
		}
		return s
	}
}

// ── Italian ──

var itOnes = []string{"zero", "uno", "due", "tre", "quattro", "cinque", "sei", "sette", "otto", "nove",
	"dieci", "undici", "dodici", "tredici", "quattordici", "quindici", "sedici", "diciassette", "diciotto", "diciannove"}
var itTens = []string{"", "", "venti", "trenta", "quaranta", "cinquanta", "sessanta", "settanta", "ottanta", "novanta"}

func spellItalian(n int) string {
	switch {
	case n < 20:
		return itOnes[n]
	case n < 100:
		tens := itTens[n/10]
		d := n % 10
		if d == 0 {
			return tens
		}
		// Elision before a vowel-initial unit: venti+uno = ventuno.
		if d == 1 || d == 8 {
			tens = strings.TrimRight(tens, "aeiou")
		}
		word := tens + itOnes[d]
		if d == 3 {
			word = tens + "tré"
		}
		return word
	case n < 1000:
		s := "cento"
		if n/100 > 1 {
			s = itOnes[n/100] + "cento"
		}
		if n%100 != 0 {
			s += spellItalian(n % 100)
		}
		return s
	default:
		var s string
		if n/1000 == 1 {
			s = "mille"
		} else {
			s = spellItalian(n/1000) + "mila"
		}
		if n%1000 != 0 {
			s += spellItalian(n % 1000)
		}
		return s
	}
}

// ── Portuguese ──

var ptOnes = []string{"zero", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove",
	"dez", "onze", "doze", "treze", "catorze", "quinze", "dezesseis", "dezessete", "dezoito", "dezenove"}
var ptTens = []string{"", "", "vinte", "trinta", "quarenta", "cinquenta", "sessenta", "setenta", "oitenta", "noventa"}
var ptHundreds = []string{"", "cento", "duzentos", "trezentos", "quatrocentos", "quinhentos",
	"seiscentos", "setecentos", "oitocentos", "novecentos"}

func spellPortuguese(n int) string {
	switch {
	case n < 20:
		return ptOnes[n]
	case n < 100:
		s := ptTens[n/10]
		if n%10 != 0 {
			s += " e " + ptOnes[n%10]
		}
		return s
	case n == 100:
		return "cem"
	case n < 1000:
		s := ptHundreds[n/100]
		if n%100 != 0 {
			s += " e " + spellPortuguese(n%100)
		}
		return s
	default:
		var s string
		if n/1000 == 1 {
			s = "mil"
		} else {
			s = spellPortuguese(n/1000) + " mil"
		}
		if n%1000 != 0 {
			rem := n % 1000
			if rem < 100 || rem%100 == 0 {
				s += " e " + spellPortuguese(rem)
			} else {
				s += " " + spellPortuguese(rem)
			}
		}
		return s
	}
}

// ── Russian ──

var ruOnes = []string{"ноль", "один", "два", "три", "четыре", "пять", "шесть", "семь", "восемь", "девять",
	"десять", "одиннадцать", "двенадцать", "тринадцать", "четырнадцать", "пятнадцать",
	"шестнадцать", "семнадцать", "восемнадцать", "девятнадцать"}
var ruTens = []string{"", "", "двадцать", "тридцать", "сорок", "пятьдесят", "шестьдесят", "семьдесят", "восемьдесят", "девяносто"}
var ruHundreds = []string{"", "сто", "двести", "триста", "четыреста", "пятьсот", "шестьсот", "семьсот", "восемьсот", "девятьсот"}

func spellRussian(n int) string {
	switch {
	case n < 20:
		return ruOnes[n]
	case n < 100:
		s := ruTens[n/10]
		if n%10 != 0 {
			s += " " + ruOnes[n%10]
		}
		return s
	case n < 1000:
		s := ruHundreds[n/100]
		if n%100 != 0 {
			s += " " + spellRussian(n%100)
		}
		return s
	default:
		s := ruThousands(n / 1000)
		if n%1000 != 0 {
			s += " " + spellRussian(n%1000)
		}
		return s
	}
}

// ruThousands spells k thousands with feminine agreement on the unit
// and the correct plural form of "тысяча".
func ruThousands(k int) string {
	unit := k % 10
	teens := k%100 >= 11 && k%100 <= 14

	var form string
	switch {
	case !teens && unit == 1:
		form = "тысяча"
	case !teens && unit >= 2 && unit <= 4:
		form = "тысячи"
	default:
		form = "тысяч"
	}

	if k == 1 {
		return "одна " + form
	}

	prefix := spellRussian(k)
	if !teens {
		switch unit {
		case 1:
			prefix = strings.TrimSuffix(prefix, "один") + "одна"
		case 2:
			prefix = strings.TrimSuffix(prefix, "два") + "две"
		}
	}
	return prefix + " " + form
}

// ── Arabic ──

var arOnes = []string{"صفر", "واحد", "اثنان", "ثلاثة", "أربعة", "خمسة", "ستة", "سبعة", "ثمانية", "تسعة",
	"عشرة", "أحد عشر", "اثنا عشر", "ثلاثة عشر", "أربعة عشر", "خمسة عشر",
	"ستة عشر", "سبعة عشر", "ثمانية عشر", "تسعة عشر"}
var arTens = []string{"", "", "عشرون", "ثلاثون", "أربعون", "خمسون", "ستون", "سبعون", "ثمانون", "تسعون"}
var arHundreds = []string{"", "مائة", "مائتان", "ثلاثمائة", "أربعمائة", "خمسمائة", "ستمائة", "سبعمائة", "ثمانمائة", "تسعمائة"}

func spellArabic(n int) string {
	switch {
	case n < 20:
		return arOnes[n]
	case n < 100:
		// Units precede tens: خمسة وعشرون (five and twenty).
		if n%10 == 0 {
			return arTens[n/10]
		}
		return arOnes[n%10] + " و" + arTens[n/10]
	case n < 1000:
		s := arHundreds[n/100]
		if n%100 != 0 {
			s += " و" + spellArabic(n%100)
		}
		return s
	default:
		s := arThousands(n / 1000)
		if n%1000 != 0 {
			s += " و" + spellArabic(n%1000)
		}
		return s
	}
}

func arThousands(k int) string {
	switch {
	case k == 1:
		return "ألف"
	case k == 2:
		return "ألفان"
	case k >= 3 && k <= 10:
		return spellArabic(k) + " آلاف"
	default:
		return spellArabic(k) + " ألف"
	}
}
