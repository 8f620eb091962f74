package detect

import "fmt"

// COCOClasses is the number of classes in the COCO dataset the detector
// models are trained on
const COCOClasses = 80

// CategoryTable maps detector class ids to categories.  The table is built
// once at startup and only read afterwards
type CategoryTable struct {
	// classes is the number of valid class ids, ids outside [0,classes) are
	// rejected
	classes int
	lookup  map[int]Category
}

// NewCategoryTable returns a table for the given number of classes where
// every class maps to Other until assigned
func NewCategoryTable(classes int) (*CategoryTable, error) {
	if classes <= 0 {
		return nil, fmt.Errorf("class count must be positive, got %d", classes)
	}

	return &CategoryTable{
		classes: classes,
		lookup:  make(map[int]Category),
	}, nil
}

// DefaultCategoryTable returns the COCO class id to category table
func DefaultCategoryTable() *CategoryTable {

	t, _ := NewCategoryTable(COCOClasses)

	t.assign(Person, 0)
	t.assignRange(Vehicle, 1, 8)
	t.assignRange(Animal, 14, 23)
	t.assignRange(SportsItem, 29, 38)
	t.assignRange(Food, 46, 55)
	t.assignRange(Furniture, 56, 61)
	t.assignRange(Electronics, 62, 70)

	return t
}

// Assign maps the given class ids to a category
func (t *CategoryTable) Assign(cat Category, classIDs ...int) error {
	for _, id := range classIDs {
		if !t.Valid(id) {
			return fmt.Errorf("class id %d out of range [0,%d)", id, t.classes)
		}
	}

	t.assign(cat, classIDs...)
	return nil
}

func (t *CategoryTable) assign(cat Category, classIDs ...int) {
	for _, id := range classIDs {
		t.lookup[id] = cat
	}
}

func (t *CategoryTable) assignRange(cat Category, from, to int) {
	for id := from; id <= to; id++ {
		t.lookup[id] = cat
	}
}

// Valid returns true if the class id is within the table range
func (t *CategoryTable) Valid(classID int) bool {
	return classID >= 0 && classID < t.classes
}

// Lookup returns the category of a class id.  Class ids not assigned to a
// category are Other
func (t *CategoryTable) Lookup(classID int) Category {
	if cat, ok := t.lookup[classID]; ok {
		return cat
	}
	return Other
}

// Classes returns the number of class ids in the table
func (t *CategoryTable) Classes() int {
	return t.classes
}
