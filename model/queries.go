package model

//CreateTableQuery is sql query for creating the runs archive table
const CreateTableQuery string = `CREATE TABLE IF NOT EXISTS runs (
id SERIAL PRIMARY KEY,
name TEXT NOT NULL,
data jsonb);`

//TestCreateTableQuery is sql query for creating the runs archive table in functional tests
const TestCreateTableQuery string = `CREATE TABLE IF NOT EXISTS runs(
id SERIAL PRIMARY KEY,
name TEXT NOT NULL,
data jsonb
);`

//HealthQuery is used for health checks to test database connection
const HealthQuery string = `SELECT 1`
