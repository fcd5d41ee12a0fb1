package cocoyolo

// Console messages in the supported languages. Only diagnostics are translated; file contents
// never depend on the language.

import (
	"fmt"

	"github.com/pkg/errors"
)

// Lang selects the language of console messages.
type Lang string

// The supported languages.
const (
	English Lang = "en"
	Russian Lang = "ru"
)

// Message keys.
const (
	MsgProcessing     = "processing"
	MsgClasses        = "classes"
	MsgFoundOBB       = "found_obb"
	MsgMissingFiles   = "missing_files"
	MsgExtraFiles     = "extra_files"
	MsgDone           = "done"
	MsgHintDuplicate  = "hint_duplicate"
	MsgHintPolygon    = "hint_polygon"
	MsgHintMissing    = "hint_missing"
	MsgHintPartition  = "hint_partition"
	MsgHintCategories = "hint_categories"
)

var messages = map[Lang]map[string]string{
	English: {
		MsgProcessing:   "Processing %s",
		MsgClasses:      "Available classes in %s",
		MsgFoundOBB:     "Found %d oriented bounding boxes in the file %s",
		MsgMissingFiles: "Missing files in the folder %s",
		MsgExtraFiles:   "Extra files in the folder %s",
		MsgDone:         "The final YOLOv8 format annotations are located in the folder %s",
		MsgHintDuplicate: "Remove the entry describing this image from the \"images\" section of" +
			" all but one of the annotation files",
		MsgHintPolygon: "All objects for training YOLOv8-seg must be annotated as polygons." +
			" Please correct this and export the dataset again",
		MsgHintMissing: "Make sure the images folder contains every image listed in the" +
			" annotation files",
		MsgHintPartition: "Annotation files must be named <name>_<train|validation|test>.json," +
			" or use --autosplit",
		MsgHintCategories: "All annotation files must declare the same category ids and names",
	},
	Russian: {
		MsgProcessing:   "Осуществляется обработка %s",
		MsgClasses:      "Имеющиеся классы в %s",
		MsgFoundOBB:     "Было обнаружено %d Oriented Bounding Boxes в файле %s",
		MsgMissingFiles: "Отсутствующие файлы в папке %s",
		MsgExtraFiles:   "Лишние файлы в папке %s",
		MsgDone:         "Итоговая разметка в формате YOLOv8 расположена в папке %s",
		MsgHintDuplicate: "Удалите запись с описанием этой фотографии из раздела \"images\" во" +
			" всех JSON файлах, кроме одного",
		MsgHintPolygon: "Все объекты для обучения YOLOv8-seg должны быть размечены как полигоны." +
			" Исправьте это и заново выгрузите датасет",
		MsgHintMissing: "Убедитесь, что папка с изображениями содержит все изображения из" +
			" JSON файлов",
		MsgHintPartition: "JSON файлы должны называться <имя>_<train|validation|test>.json," +
			" либо используйте --autosplit",
		MsgHintCategories: "Все JSON файлы должны объявлять одинаковые id и имена классов",
	},
}

// ParseLang parses a language code. The empty string selects English.
func ParseLang(s string) (Lang, bool) {
	if s == "" {
		return English, true
	}
	l := Lang(s)
	_, ok := messages[l]
	return l, ok
}

// Msg formats the message for key in l, falling back to English.
func (l Lang) Msg(key string, args ...interface{}) string {
	format, ok := messages[l][key]
	if !ok {
		format = messages[English][key]
	}
	return fmt.Sprintf(format, args...)
}

// Hint returns an instruction for fixing the cause of err, or "" if there is none.
func (l Lang) Hint(err error) string {
	var (
		dup       *DuplicateReferenceError
		schema    *SchemaError
		missing   *MissingImagesError
		partition *PartitionError
		conflict  *CategoryConflictError
	)
	switch {
	case errors.As(err, &dup):
		return l.Msg(MsgHintDuplicate)
	case errors.As(err, &schema):
		return l.Msg(MsgHintPolygon)
	case errors.As(err, &missing):
		return l.Msg(MsgHintMissing)
	case errors.As(err, &partition):
		return l.Msg(MsgHintPartition)
	case errors.As(err, &conflict):
		return l.Msg(MsgHintCategories)
	}
	return ""
}
