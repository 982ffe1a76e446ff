package jobsched

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// SetDefaultValues and Validate implement the teacher's reflection-
// driven struct-tag convention (httptines.go's setDefaultValues/
// validate, duplicated verbatim in helpers.go in the original) for any
// config struct tagged with `default:"..."` / `validate:"required"`.
// Kept as one adapted copy instead of the teacher's two.

// SetDefaultValues fills zero-valued fields tagged `default:"..."`.
func SetDefaultValues(obj interface{}) {
	tof := reflect.TypeOf(obj).Elem()
	vof := reflect.ValueOf(obj).Elem()

	for i := 0; i < vof.NumField(); i++ {
		vf := vof.Field(i)
		v := tof.Field(i).Tag.Get("default")

		if v == "" || !vf.IsZero() {
			continue
		}

		switch vf.Kind() {
		case reflect.String:
			vf.SetString(v)
		case reflect.Int:
			if intv, err := strconv.ParseInt(v, 10, 64); err == nil {
				vf.SetInt(intv)
			}
		case reflect.Bool:
			if b, err := strconv.ParseBool(v); err == nil {
				vf.SetBool(b)
			}
		case reflect.Slice:
			if vf.Type().Elem().Kind() == reflect.String {
				vf.Set(reflect.ValueOf(strings.Split(v, ",")))
			}
		}
	}
}

// Validate exits the process with a message when a field tagged
// `validate:"required"` is left at its zero value, exactly as the
// teacher's validate() does.
func Validate(obj interface{}) {
	tof := reflect.TypeOf(obj).Elem()
	vof := reflect.ValueOf(obj).Elem()

	for i := 0; i < vof.NumField(); i++ {
		tf := tof.Field(i)
		vf := vof.Field(i)

		v := tf.Tag.Get("validate")
		if v == "" {
			continue
		}

		if strings.Contains(v, "required") && vf.IsZero() {
			fmt.Printf("Field %q is required\n", tf.Name)
			os.Exit(1)
		}
	}
}
