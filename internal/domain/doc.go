// Package domain contains the core entities of the application and their
// validation rules. Domain types carry no persistence or transport concerns;
// they are shared by the stores, services, and API layers.
package domain
